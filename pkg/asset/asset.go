package asset

import (
	"context"
	"encoding/json"
	"errors"

	imgerr "github.com/xraynetwork/imgcdn/pkg/errors"
	"github.com/xraynetwork/imgcdn/pkg/metadata"
)

// Network is a chain network served by the proxy, e.g. "mainnet".
type Network string

// Class is an image namespace: images from the asset's own metadata,
// or logos from the off-chain token registry.
type Class string

const (
	ClassMetadata Class = "metadata"
	ClassRegistry Class = "registry"
)

// Record is what the chain index knows about one asset. It is built
// fresh for every resolution and never cached.
type Record struct {
	PolicyID       string
	AssetName      string // hex
	AssetNameASCII string
	// MintingTxMetadata is the raw JSON of the minting transaction's
	// metadata, holding the CIP25 "721" tree.
	MintingTxMetadata json.RawMessage
	// CIP68Metadata holds the datums by label ("100", "222", ...); nil
	// when the asset has none.
	CIP68Metadata map[string]metadata.TaggedValue
	TokenRegistry *RegistryMetadata
}

// RegistryMetadata is the part of the off-chain token registry entry
// the proxy cares about.
type RegistryMetadata struct {
	// Logo is base64 encoded image data.
	Logo string `json:"logo"`
}

// RegistryLogo returns the registry logo, or "" if there is none.
func (r Record) RegistryLogo() string {
	if r.TokenRegistry == nil {
		return ""
	}
	return r.TokenRegistry.Logo
}

// Lookup resolves an asset fingerprint to its on-chain record.
type Lookup interface {
	FetchAsset(ctx context.Context, network Network, fingerprint string) (Record, error)
}

var ErrAssetNotFound = &imgerr.Error{
	Type: imgerr.Missing,
	Err:  errors.New("asset not found"),
	Help: `Asset not found

The chain index has no asset with this fingerprint on this network.
`,
}
