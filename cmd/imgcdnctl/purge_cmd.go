package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type purgeOpts struct {
	*rootOpts
}

func newPurge(parent *rootOpts) *purgeOpts {
	return &purgeOpts{rootOpts: parent}
}

func (opts *purgeOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "purge NETWORK CLASS FINGERPRINT",
		Short: "Delete an asset's image from the CDN, so that it is fetched afresh.",
		Long: `Purge deletes the image from the CDN. The next request for it
resolves the asset again and uploads whatever its metadata points at.

Servers that remember which images exist keep serving from their
memory until it expires; see --exists-ttl.`,
		Example: makeExample(
			"imgcdnctl purge mainnet metadata asset1rjklcrnsdzqp65wjgrg55sy9723kw09mlgvlc3",
		),
		RunE: opts.RunE,
	}
}

func (opts *purgeOpts) RunE(cmd *cobra.Command, args []string) error {
	key, err := parseKey(args)
	if err != nil {
		return err
	}
	images, err := opts.store()
	if err != nil {
		return err
	}
	if err := images.Delete(context.Background(), key); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "purged %s\n", key.ID())
	return nil
}
