package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/xraynetwork/imgcdn/pkg/metadata"
)

// datumKeys are the keys of a single datum in its JSON rendering; an
// object with none of them is taken to be datums by label.
var datumKeys = []string{"constructor", "fields", "map", "int", "bytes", "list"}

type decodeOpts struct {
	*rootOpts
}

func newDecode(parent *rootOpts) *decodeOpts {
	return &decodeOpts{rootOpts: parent}
}

func (opts *decodeOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode [FILE]",
		Short: "Decode CIP68 metadata as the image resolution sees it.",
		Long: `Decode reads either the chain index's JSON rendering of CIP68
metadata (a single datum, or datums by label as in cip68_metadata), or
the hex encoded CBOR of a datum, from FILE or stdin, and prints the
decoded value as JSON.`,
		Example: makeExample(
			"imgcdnctl decode cip68.json",
			"echo a2416201416102 | imgcdnctl decode",
		),
		RunE: opts.RunE,
	}
	return cmd
}

func (opts *decodeOpts) RunE(cmd *cobra.Command, args []string) error {
	var in io.Reader
	switch len(args) {
	case 0:
		in = cmd.InOrStdin()
	case 1:
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	default:
		return usagef("expected at most one FILE")
	}

	raw, err := ioutil.ReadAll(in)
	if err != nil {
		return errors.Wrap(err, "reading input")
	}
	v, err := decodeInput(raw)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func decodeInput(raw []byte) (metadata.Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return metadata.Value{}, usagef("nothing to decode")
	}
	if raw[0] != '{' {
		datum, err := metadata.ParseDatum(string(raw))
		if err != nil {
			return metadata.Value{}, err
		}
		return metadata.Decode(datum)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return metadata.Value{}, errors.Wrap(err, "parsing JSON")
	}
	for _, k := range datumKeys {
		if _, ok := fields[k]; ok {
			var datum metadata.TaggedValue
			if err := json.Unmarshal(raw, &datum); err != nil {
				return metadata.Value{}, errors.Wrap(err, "parsing datum")
			}
			return metadata.Decode(datum)
		}
	}

	var labels map[string]metadata.TaggedValue
	if err := json.Unmarshal(raw, &labels); err != nil {
		return metadata.Value{}, errors.Wrap(err, "parsing datums by label")
	}
	names := make([]string, 0, len(labels))
	for label := range labels {
		names = append(names, label)
	}
	sort.Strings(names)
	entries := make([]metadata.Entry, 0, len(names))
	for _, label := range names {
		v, err := metadata.Decode(labels[label])
		if err != nil {
			return metadata.Value{}, errors.Wrapf(err, "decoding label %s", label)
		}
		entries = append(entries, metadata.Entry{Key: label, Value: v})
	}
	return metadata.Object(entries...), nil
}
