package config

import (
	"strconv"
	"time"

	"github.com/xraynetwork/imgcdn/pkg/asset"
)

const (
	// DefaultByteCeiling is the CDN's upload limit. Larger images are
	// passed through from their origin instead.
	DefaultByteCeiling = 20000000

	Week = 7 * 24 * time.Hour
)

var DefaultKoiosEndpoints = map[asset.Network]string{
	"mainnet": "https://api.koios.rest/api/v1",
	"preprod": "https://preprod.koios.rest/api/v1",
	"preview": "https://preview.koios.rest/api/v1",
}

// Policy is the fixed serving policy: what may be requested, and how
// responses are cached. It is built once at start-up and shared,
// read-only, by the pipeline and the HTTP layer.
type Policy struct {
	Networks []asset.Network
	Sizes    map[asset.Class][]int

	ByteCeiling int64
	IPFSGateway string

	ServedMaxAge   time.Duration
	NotFoundMaxAge time.Duration
}

func DefaultPolicy() *Policy {
	return &Policy{
		Networks: []asset.Network{"mainnet", "preprod", "preview"},
		Sizes: map[asset.Class][]int{
			asset.ClassMetadata: {32, 64, 128, 256, 512, 1024, 2048},
			asset.ClassRegistry: {32, 64, 128, 256, 512},
		},
		ByteCeiling:    DefaultByteCeiling,
		IPFSGateway:    "https://nftstorage.link",
		ServedMaxAge:   1000 * Week,
		NotFoundMaxAge: 10 * Week,
	}
}

func (p *Policy) AllowsNetwork(n asset.Network) bool {
	for _, allowed := range p.Networks {
		if n == allowed {
			return true
		}
	}
	return false
}

func (p *Policy) AllowsClass(c asset.Class) bool {
	_, ok := p.Sizes[c]
	return ok
}

// ParseSize returns the size in a request path if it is one served
// for the class. Only the canonical decimal form is accepted.
func (p *Policy) ParseSize(c asset.Class, s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || strconv.Itoa(n) != s {
		return 0, false
	}
	return n, p.AllowsSize(c, n)
}

func (p *Policy) AllowsSize(c asset.Class, size int) bool {
	for _, allowed := range p.Sizes[c] {
		if size == allowed {
			return true
		}
	}
	return false
}
