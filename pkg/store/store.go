// Package store is the CDN-backed image store the pipeline materializes
// images into and serves renditions from.
package store

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/xraynetwork/imgcdn/pkg/asset"
	imgerr "github.com/xraynetwork/imgcdn/pkg/errors"
)

// Key identifies one stored image. Size is not part of it: every size
// is a rendition of the same stored original.
type Key struct {
	Network     asset.Network
	Class       asset.Class
	Fingerprint string
}

// ID is the image ID in the CDN, "network/class/fingerprint".
func (k Key) ID() string {
	return strings.Join([]string{string(k.Network), string(k.Class), k.Fingerprint}, "/")
}

func (k Key) String() string {
	return k.ID()
}

// Rendition is a response from the CDN's delivery endpoint. The caller
// must close Body.
type Rendition struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

type Store interface {
	// Exists reports whether an image is stored under key. An error
	// means the answer is unknown and is treated as false.
	Exists(ctx context.Context, key Key) (bool, error)
	// Upload stores image under key. Uploading the same key twice
	// must not fail.
	Upload(ctx context.Context, key Key, image []byte) error
	// Serve fetches the rendition of key at size, passing header on
	// to the CDN so that conditional requests work.
	Serve(ctx context.Context, key Key, size int, header http.Header) (*Rendition, error)
}

// Deleter is implemented by stores that can remove an image.
type Deleter interface {
	Delete(ctx context.Context, key Key) error
}

var ErrRenditionUnavailable = &imgerr.Error{
	Type: imgerr.Missing,
	Err:  errors.New("rendition unavailable"),
	Help: `Rendition unavailable

The CDN did not return the image at the requested size.
`,
}
