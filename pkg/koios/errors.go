package koios

import (
	"fmt"

	"github.com/xraynetwork/imgcdn/pkg/asset"
	imgerr "github.com/xraynetwork/imgcdn/pkg/errors"
)

// ErrNotIndexed says the index has nothing for fingerprint. It wraps
// asset.ErrAssetNotFound.
func ErrNotIndexed(fingerprint string) error {
	return &imgerr.Error{
		Type: imgerr.Missing,
		Err:  fmt.Errorf("fingerprint %s: %w", fingerprint, asset.ErrAssetNotFound),
		Help: `Asset not indexed

Koios returned no asset for the fingerprint ` + fingerprint + `. Check the
fingerprint and the network it was minted on.
`,
	}
}
