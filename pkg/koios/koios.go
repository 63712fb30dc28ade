// Package koios looks assets up in the Koios chain index.
package koios

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/xraynetwork/imgcdn/pkg/asset"
	"github.com/xraynetwork/imgcdn/pkg/http/httperror"
	"github.com/xraynetwork/imgcdn/pkg/http/middleware"
	"github.com/xraynetwork/imgcdn/pkg/metadata"
)

const assetInfoFields = "asset_name,asset_name_ascii,minting_tx_metadata,cip68_metadata,token_registry_metadata"

type Config struct {
	// Endpoints maps each network to its API base URL, e.g.
	// https://api.koios.rest/api/v1.
	Endpoints map[asset.Network]string
	// Token is sent as a bearer token when set.
	Token     string
	Limiters  *middleware.RateLimiters
	Transport http.RoundTripper
	// Trace logs every request to the index.
	Trace  bool
	Logger log.Logger
}

type endpoint struct {
	base   string
	client *http.Client
}

// Client is an asset.Lookup backed by Koios.
type Client struct {
	endpoints map[asset.Network]endpoint
	token     string
	logger    log.Logger
}

var _ asset.Lookup = &Client{}

func New(config Config) (*Client, error) {
	if config.Logger == nil {
		config.Logger = log.NewNopLogger()
	}
	tx := config.Transport
	if tx == nil {
		tx = http.DefaultTransport
	}
	if config.Trace {
		tx = &middleware.Logging{Logger: config.Logger, Transport: tx}
	}

	c := &Client{
		endpoints: map[asset.Network]endpoint{},
		token:     config.Token,
		logger:    config.Logger,
	}
	for network, base := range config.Endpoints {
		u, err := url.Parse(base)
		if err != nil || u.Host == "" {
			return nil, errors.Errorf("invalid Koios endpoint %q for %s", base, network)
		}
		rt := tx
		if config.Limiters != nil {
			rt = config.Limiters.RoundTripper(tx, u.Host)
		}
		c.endpoints[network] = endpoint{
			base:   strings.TrimRight(base, "/"),
			client: &http.Client{Transport: rt},
		}
	}
	return c, nil
}

type assetListRow struct {
	PolicyID  string `json:"policy_id"`
	AssetName string `json:"asset_name"`
}

type assetInfoRow struct {
	AssetName             string                     `json:"asset_name"`
	AssetNameASCII        *string                    `json:"asset_name_ascii"`
	MintingTxMetadata     json.RawMessage            `json:"minting_tx_metadata"`
	CIP68Metadata         map[string]json.RawMessage `json:"cip68_metadata"`
	TokenRegistryMetadata *asset.RegistryMetadata    `json:"token_registry_metadata"`
}

// FetchAsset finds the policy and name of the asset with fingerprint,
// then asks for its metadata.
func (c *Client) FetchAsset(ctx context.Context, network asset.Network, fingerprint string) (asset.Record, error) {
	ep, ok := c.endpoints[network]
	if !ok {
		return asset.Record{}, errors.Errorf("no Koios endpoint for network %q", network)
	}

	var list []assetListRow
	query := url.Values{"fingerprint": {"eq." + fingerprint}}
	if err := c.do(ctx, ep, http.MethodGet, "/asset_list?"+query.Encode(), nil, &list); err != nil {
		return asset.Record{}, errors.Wrap(err, "listing asset")
	}
	if len(list) == 0 {
		return asset.Record{}, errors.Wrapf(ErrNotIndexed(fingerprint), "%s", network)
	}
	policyID, assetName := list[0].PolicyID, list[0].AssetName

	body := map[string][][]string{"_asset_list": {{policyID, assetName}}}
	var info []assetInfoRow
	if err := c.do(ctx, ep, http.MethodPost, "/asset_info?select="+assetInfoFields, body, &info); err != nil {
		return asset.Record{}, errors.Wrap(err, "fetching asset info")
	}
	if len(info) == 0 {
		return asset.Record{}, errors.Wrapf(ErrNotIndexed(fingerprint), "%s asset_info", network)
	}
	return c.record(policyID, assetName, info[0]), nil
}

func (c *Client) record(policyID, assetName string, row assetInfoRow) asset.Record {
	rec := asset.Record{
		PolicyID:      policyID,
		AssetName:     assetName,
		TokenRegistry: row.TokenRegistryMetadata,
	}
	if row.AssetNameASCII != nil {
		rec.AssetNameASCII = *row.AssetNameASCII
	} else {
		rec.AssetNameASCII = metadata.HexToString(assetName)
	}
	if len(row.MintingTxMetadata) > 0 && string(row.MintingTxMetadata) != "null" {
		rec.MintingTxMetadata = row.MintingTxMetadata
	}
	if row.CIP68Metadata != nil {
		rec.CIP68Metadata = map[string]metadata.TaggedValue{}
		for label, raw := range row.CIP68Metadata {
			var tv metadata.TaggedValue
			if err := json.Unmarshal(raw, &tv); err != nil {
				// Same rule as for decoding: one bad label spoils them all.
				c.logger.Log("err", errors.Wrapf(err, "parsing CIP68 label %s", label), "policy", policyID, "asset", assetName)
				rec.CIP68Metadata = map[string]metadata.TaggedValue{}
				break
			}
			rec.CIP68Metadata[label] = tv
		}
	}
	return rec
}

func (c *Client) do(ctx context.Context, ep endpoint, method, path string, in, out interface{}) error {
	var body *bytes.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, ep.base+path, body)
	if err != nil {
		return errors.Wrap(err, "constructing request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := ep.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "executing HTTP request")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httperror.FromResponse(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decoding response body")
	}
	return nil
}
