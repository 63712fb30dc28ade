package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/xraynetwork/imgcdn/pkg/asset"
	"github.com/xraynetwork/imgcdn/pkg/config"
	"github.com/xraynetwork/imgcdn/pkg/koios"
	"github.com/xraynetwork/imgcdn/pkg/store/cloudflare"
)

const (
	EnvVariableKoiosToken         = "IMGCDN_KOIOS_TOKEN"
	EnvVariableCloudflareAccount  = "IMGCDN_CLOUDFLARE_ACCOUNT_ID"
	EnvVariableCloudflareHash     = "IMGCDN_CLOUDFLARE_ACCOUNT_HASH"
	EnvVariableCloudflareAPIToken = "IMGCDN_CLOUDFLARE_API_TOKEN"
)

type rootOpts struct {
	KoiosURLs   []string
	KoiosToken  string
	IPFSGateway string

	CloudflareAccountID   string
	CloudflareAccountHash string
	CloudflareAPIToken    string
	CloudflareAPIURL      string
	ImageDeliveryURL      string

	Verbose bool
}

func newRoot() *rootOpts {
	return &rootOpts{}
}

var rootLongHelp = strings.TrimSpace(`
imgcdnctl helps you look into and manage the images imgcdn serves.

Workflow:
  imgcdnctl resolve mainnet asset1...                  # Where does the asset's image come from?
  imgcdnctl decode datum.json                          # What does a CIP68 datum say?
  imgcdnctl exists mainnet metadata asset1...          # Is the image on the CDN yet?
  imgcdnctl purge mainnet metadata asset1...           # Remove it, so it is fetched again.
  imgcdnctl url -e https://cdn.example mainnet metadata asset1... 256
`)

func (opts *rootOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "imgcdnctl",
		Long:              rootLongHelp,
		SilenceUsage:      true,
		PersistentPreRunE: opts.PersistentPreRunE,
	}
	fs := cmd.PersistentFlags()
	fs.StringSliceVar(&opts.KoiosURLs, "koios-url", nil, "override the Koios API base URL of a network, given as network=url")
	fs.StringVar(&opts.KoiosToken, "koios-token", "",
		fmt.Sprintf("bearer token for the Koios API; you can also set the environment variable %s", EnvVariableKoiosToken))
	fs.StringVar(&opts.IPFSGateway, "ipfs-gateway", config.DefaultPolicy().IPFSGateway, "base URL that ipfs:// image URIs are rewritten to")
	fs.StringVar(&opts.CloudflareAccountID, "cloudflare-account-id", "",
		fmt.Sprintf("Cloudflare account that holds the images; you can also set the environment variable %s", EnvVariableCloudflareAccount))
	fs.StringVar(&opts.CloudflareAccountHash, "cloudflare-account-hash", "",
		fmt.Sprintf("account hash used in image delivery URLs; you can also set the environment variable %s", EnvVariableCloudflareHash))
	fs.StringVar(&opts.CloudflareAPIToken, "cloudflare-api-token", "",
		fmt.Sprintf("API token with Cloudflare Images edit permission; you can also set the environment variable %s", EnvVariableCloudflareAPIToken))
	fs.StringVar(&opts.CloudflareAPIURL, "cloudflare-api-url", cloudflare.DefaultAPIURL, "Cloudflare API base URL")
	fs.StringVar(&opts.ImageDeliveryURL, "image-delivery-url", cloudflare.DefaultDeliveryURL, "base URL renditions are served from")
	fs.BoolVarP(&opts.Verbose, "verbose", "v", false, "log requests to stderr")

	cmd.AddCommand(
		newVersionCommand(),
		newResolve(opts).Command(),
		newDecode(opts).Command(),
		newExists(opts).Command(),
		newPurge(opts).Command(),
		newURL(opts).Command(),
	)

	return cmd
}

// PersistentPreRunE fills in from the environment the flags that were
// not given.
func (opts *rootOpts) PersistentPreRunE(cmd *cobra.Command, _ []string) error {
	fromEnv(cmd.Flags(), "koios-token", EnvVariableKoiosToken, &opts.KoiosToken)
	fromEnv(cmd.Flags(), "cloudflare-account-id", EnvVariableCloudflareAccount, &opts.CloudflareAccountID)
	fromEnv(cmd.Flags(), "cloudflare-account-hash", EnvVariableCloudflareHash, &opts.CloudflareAccountHash)
	fromEnv(cmd.Flags(), "cloudflare-api-token", EnvVariableCloudflareAPIToken, &opts.CloudflareAPIToken)
	return nil
}

func fromEnv(fs *pflag.FlagSet, flagName, env string, dst *string) {
	if v := os.Getenv(env); v != "" && !fs.Changed(flagName) {
		*dst = v
	}
}

func (opts *rootOpts) logger() log.Logger {
	if !opts.Verbose {
		return log.NewNopLogger()
	}
	return log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
}

func (opts *rootOpts) lookup() (asset.Lookup, error) {
	endpoints, err := config.Config{KoiosURL: opts.KoiosURLs}.KoiosEndpoints()
	if err != nil {
		return nil, usageError{err}
	}
	client, err := koios.New(koios.Config{
		Endpoints: endpoints,
		Token:     opts.KoiosToken,
		Trace:     opts.Verbose,
		Logger:    opts.logger(),
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (opts *rootOpts) store() (*cloudflare.Store, error) {
	if opts.CloudflareAccountID == "" || opts.CloudflareAccountHash == "" || opts.CloudflareAPIToken == "" {
		return nil, usagef("--cloudflare-account-id, --cloudflare-account-hash and --cloudflare-api-token are required")
	}
	return cloudflare.New(cloudflare.Config{
		AccountID:   opts.CloudflareAccountID,
		AccountHash: opts.CloudflareAccountHash,
		APIToken:    opts.CloudflareAPIToken,
		APIURL:      opts.CloudflareAPIURL,
		DeliveryURL: opts.ImageDeliveryURL,
		Logger:      opts.logger(),
	})
}
