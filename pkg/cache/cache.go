package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	imgerr "github.com/xraynetwork/imgcdn/pkg/errors"
)

var ErrNotCached = &imgerr.Error{
	Type: imgerr.Missing,
	Err:  errors.New("item not in cache"),
	Help: `Item not in cache

The value has not been recorded yet, or has expired.
`,
}

type Reader interface {
	// GetKey gets the value at a key, along with its refresh deadline
	GetKey(k Keyer) ([]byte, time.Time, error)
}

type Writer interface {
	// SetKey sets the value at a key, along with its refresh deadline
	SetKey(k Keyer, deadline time.Time, v []byte) error
}

type Client interface {
	Reader
	Writer
}

// Counter increments a counter at a key, creating it if need be.
type Counter interface {
	Incr(ctx context.Context, k Keyer) error
}

// Keyer provides the key under which to store the data.
type Keyer interface {
	Key() string
}

type existsKey struct {
	imageID string
}

// NewExistsKey is the key recording that the CDN holds imageID.
func NewExistsKey(imageID string) Keyer {
	return &existsKey{imageID}
}

func (k *existsKey) Key() string {
	return strings.Join([]string{
		"imgexistsv1", // Bump the version number if the cache format changes
		k.imageID,
	}, "|")
}

type usageKey struct {
	network, class string
}

// NewUsageKey is the key counting requests for a network and class.
func NewUsageKey(network, class string) Keyer {
	return &usageKey{network, class}
}

func (k *usageKey) Key() string {
	return strings.Join([]string{
		"imgusagev1",
		k.network,
		k.class,
	}, "|")
}
