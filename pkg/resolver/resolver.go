package resolver

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/Jeffail/gabs"
	"github.com/ipfs/go-cid"
	pkgerrors "github.com/pkg/errors"

	"github.com/xraynetwork/imgcdn/pkg/asset"
	imgerr "github.com/xraynetwork/imgcdn/pkg/errors"
	"github.com/xraynetwork/imgcdn/pkg/metadata"
)

// Kind says how the bytes of an image are obtained.
type Kind string

const (
	EmbeddedBase64 Kind = "base64"
	RemoteHTTP     Kind = "http"
	RemoteIPFS     Kind = "ipfs"
)

const (
	prefixData  = "data:image/"
	prefixHTTP  = "http://"
	prefixHTTPS = "https://"
	prefixIPFS  = "ipfs://"
)

var (
	ErrNoImageFound = &imgerr.Error{
		Type: imgerr.Missing,
		Err:  errors.New("no image in asset metadata"),
		Help: `Image not found

None of the supported metadata standards (CIP68, CIP25) carries an
image for this asset.
`,
	}
	ErrUnsupportedLocator = &imgerr.Error{
		Type: imgerr.Missing,
		Err:  errors.New("unsupported image locator"),
		Help: `Unsupported image locator

The asset's image is neither embedded data, an HTTP(S) URL nor an
IPFS URI.
`,
	}
)

// Reference points at the bytes of an image.
type Reference struct {
	Kind    Kind
	Locator string
	// Source names the metadata field the reference came from.
	Source string
}

// CID returns the IPFS content identifier of an IPFS reference, if it
// carries a valid one.
func (r Reference) CID() (cid.Cid, bool) {
	if r.Kind != RemoteIPFS {
		return cid.Undef, false
	}
	i := strings.LastIndex(r.Locator, "/ipfs/")
	if i < 0 {
		return cid.Undef, false
	}
	root := r.Locator[i+len("/ipfs/"):]
	if j := strings.IndexAny(root, "/?#"); j >= 0 {
		root = root[:j]
	}
	c, err := cid.Decode(root)
	if err != nil {
		return cid.Undef, false
	}
	return c, true
}

// Resolver picks the image of an asset out of its metadata.
type Resolver struct {
	// Gateway is the base URL IPFS URIs are rewritten to.
	Gateway string
}

type candidate struct {
	source string
	value  func() metadata.Value
}

// Resolve returns the first image found, looking in this order:
//
//	CIP68 label 222 (NFT)           image
//	CIP68 label 444 (RFT)           image
//	CIP68 label 100 (reference NFT) image
//	CIP68 label 333 (FT)            logo
//	CIP25 721[policy][ascii name]   image
//	CIP25 721[policy][hex name]     image
//
// cip68 is the decoded CIP68 metadata of rec. The first candidate that
// is present wins, even if it then turns out not to be usable.
func (r *Resolver) Resolve(rec asset.Record, cip68 metadata.Value) (Reference, error) {
	var minted *gabs.Container
	cip25 := func(name string) func() metadata.Value {
		return func() metadata.Value {
			if minted == nil {
				minted = parseMinting(rec.MintingTxMetadata)
			}
			return metadata.FromJSON(minted.Search("721", rec.PolicyID, name, "image").Data())
		}
	}
	cip68Field := func(label, field string) func() metadata.Value {
		return func() metadata.Value {
			return cip68.Get(label).Index(0).Get(field)
		}
	}

	candidates := []candidate{
		{"cip68:222.image", cip68Field("222", "image")},
		{"cip68:444.image", cip68Field("444", "image")},
		{"cip68:100.image", cip68Field("100", "image")},
		{"cip68:333.logo", cip68Field("333", "logo")},
		{"cip25:721.name.image", cip25(rec.AssetNameASCII)},
		{"cip25:721.hexname.image", cip25(rec.AssetName)},
	}
	for _, c := range candidates {
		v := c.value()
		if v.IsAbsent() {
			continue
		}
		locator, err := locatorOf(v)
		if err != nil {
			return Reference{}, pkgerrors.Wrap(err, c.source)
		}
		ref, err := Classify(r.Gateway, locator)
		if err != nil {
			return Reference{}, pkgerrors.Wrap(err, c.source)
		}
		ref.Source = c.source
		return ref, nil
	}
	return Reference{}, ErrNoImageFound
}

func parseMinting(raw json.RawMessage) *gabs.Container {
	if len(raw) == 0 {
		return &gabs.Container{}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	parsed, err := gabs.ParseJSONDecoder(dec)
	if err != nil {
		return &gabs.Container{}
	}
	return parsed
}

// locatorOf turns a metadata value into a locator string. Long URIs
// are split into chunks by the on-chain encodings, so a sequence of
// strings is joined back together.
func locatorOf(v metadata.Value) (string, error) {
	if s, ok := v.Text(); ok {
		return s, nil
	}
	items, ok := v.Items()
	if !ok {
		return "", pkgerrors.Wrapf(ErrUnsupportedLocator, "image is a %s", v.Kind())
	}
	var sb strings.Builder
	for _, item := range items {
		s, ok := item.Text()
		if !ok {
			return "", pkgerrors.Wrapf(ErrUnsupportedLocator, "image chunk is a %s", item.Kind())
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}

// Classify determines the kind of a locator from its prefix alone.
// IPFS URIs are rewritten to a URL on the gateway.
func Classify(gateway, locator string) (Reference, error) {
	switch {
	case strings.HasPrefix(locator, prefixHTTPS), strings.HasPrefix(locator, prefixHTTP):
		return Reference{Kind: RemoteHTTP, Locator: locator}, nil
	case strings.HasPrefix(locator, prefixIPFS):
		path := strings.ReplaceAll(locator, prefixIPFS, "")
		path = strings.ReplaceAll(path, "ipfs/", "")
		return Reference{Kind: RemoteIPFS, Locator: gateway + "/ipfs/" + path}, nil
	case strings.HasPrefix(locator, prefixData):
		return Reference{Kind: EmbeddedBase64, Locator: locator}, nil
	}
	return Reference{}, pkgerrors.Wrapf(ErrUnsupportedLocator, "locator %q", abbreviate(locator))
}

func abbreviate(s string) string {
	const max = 64
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
