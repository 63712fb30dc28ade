package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xraynetwork/imgcdn/pkg/asset"
	"github.com/xraynetwork/imgcdn/pkg/metadata"
	"github.com/xraynetwork/imgcdn/pkg/resolver"
)

type resolveOpts struct {
	*rootOpts
	class string
}

func newResolve(parent *rootOpts) *resolveOpts {
	return &resolveOpts{rootOpts: parent}
}

func (opts *resolveOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve NETWORK FINGERPRINT",
		Short: "Show where an asset's image comes from.",
		Example: makeExample(
			"imgcdnctl resolve mainnet asset1rjklcrnsdzqp65wjgrg55sy9723kw09mlgvlc3",
			"imgcdnctl resolve --class registry mainnet asset1...",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.class, "class", "c", string(asset.ClassMetadata), "image class to resolve (metadata or registry)")
	return cmd
}

func (opts *resolveOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 2 {
		return usagef("expected NETWORK FINGERPRINT, got %d arguments", len(args))
	}
	key, err := parseKey([]string{args[0], opts.class, args[1]})
	if err != nil {
		return err
	}
	lookup, err := opts.lookup()
	if err != nil {
		return err
	}
	rec, err := lookup.FetchAsset(context.Background(), key.Network, key.Fingerprint)
	if err != nil {
		return err
	}

	// Two-column KEY VALUE listing.
	out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	defer out.Flush()
	fmt.Fprintf(out, "ASSET\t%s.%s\n", rec.PolicyID, rec.AssetName)
	if rec.AssetNameASCII != "" {
		fmt.Fprintf(out, "NAME\t%s\n", rec.AssetNameASCII)
	}

	if key.Class == asset.ClassRegistry {
		logo := rec.RegistryLogo()
		if logo == "" {
			return resolver.ErrNoImageFound
		}
		fmt.Fprintf(out, "SOURCE\tregistry.logo\n")
		fmt.Fprintf(out, "KIND\t%s\n", resolver.EmbeddedBase64)
		fmt.Fprintf(out, "LENGTH\t%d\n", len(logo))
		return nil
	}

	cip68 := metadata.DecodeTopLevel(rec.CIP68Metadata, opts.logger())
	res := &resolver.Resolver{Gateway: opts.IPFSGateway}
	ref, err := res.Resolve(rec, cip68)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "SOURCE\t%s\n", ref.Source)
	fmt.Fprintf(out, "KIND\t%s\n", ref.Kind)
	if ref.Kind == resolver.EmbeddedBase64 {
		fmt.Fprintf(out, "LENGTH\t%d\n", len(ref.Locator))
	} else {
		fmt.Fprintf(out, "LOCATOR\t%s\n", ref.Locator)
	}
	if c, ok := ref.CID(); ok {
		fmt.Fprintf(out, "CID\t%s (v%d)\n", c, c.Version())
	}
	return nil
}
