package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/xraynetwork/imgcdn/pkg/config"
	transport "github.com/xraynetwork/imgcdn/pkg/http"
)

type urlOpts struct {
	*rootOpts
	endpoint string
}

func newURL(parent *rootOpts) *urlOpts {
	return &urlOpts{rootOpts: parent}
}

func (opts *urlOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "url NETWORK CLASS FINGERPRINT SIZE",
		Short: "Print the URL an image is served at.",
		Example: makeExample(
			"imgcdnctl url -e https://cdn.example.com mainnet metadata asset1rjklcrnsdzqp65wjgrg55sy9723kw09mlgvlc3 256",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.endpoint, "endpoint", "e", "http://localhost:8080", "base URL of the imgcdn server")
	return cmd
}

func (opts *urlOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 4 {
		return usagef("expected NETWORK CLASS FINGERPRINT SIZE, got %d arguments", len(args))
	}
	key, err := parseKey(args[:3])
	if err != nil {
		return err
	}
	size, ok := config.DefaultPolicy().ParseSize(key.Class, args[3])
	if !ok {
		return usagef("size %q is not served for class %s", args[3], key.Class)
	}
	u, err := transport.MakeURL(opts.endpoint, transport.NewRouter(), transport.Image,
		"network", string(key.Network),
		"class", string(key.Class),
		"fingerprint", key.Fingerprint,
		"size", strconv.Itoa(size))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), u.String())
	return nil
}
