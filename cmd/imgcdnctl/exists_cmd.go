package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type existsOpts struct {
	*rootOpts
}

func newExists(parent *rootOpts) *existsOpts {
	return &existsOpts{rootOpts: parent}
}

func (opts *existsOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "exists NETWORK CLASS FINGERPRINT",
		Short: "Check whether an asset's image is on the CDN.",
		Example: makeExample(
			"imgcdnctl exists mainnet metadata asset1rjklcrnsdzqp65wjgrg55sy9723kw09mlgvlc3",
		),
		RunE: opts.RunE,
	}
}

func (opts *existsOpts) RunE(cmd *cobra.Command, args []string) error {
	key, err := parseKey(args)
	if err != nil {
		return err
	}
	images, err := opts.store()
	if err != nil {
		return err
	}
	ok, err := images.Exists(context.Background(), key)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(cmd.OutOrStdout(), "%s is not on the CDN\n", key.ID())
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is on the CDN\n", key.ID())
	return nil
}
