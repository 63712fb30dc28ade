package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/xraynetwork/imgcdn/pkg/asset"
	"github.com/xraynetwork/imgcdn/pkg/config"
	"github.com/xraynetwork/imgcdn/pkg/store"
)

// usageError is a mistake in how a command was invoked; main follows
// it with the command's usage.
type usageError struct {
	error
}

func usagef(format string, args ...interface{}) usageError {
	return usageError{error: errors.Errorf(format, args...)}
}

// noArgs rejects positional arguments for commands that take only flags.
func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usagef("%s takes no arguments, got %q", cmd.CommandPath(), args)
	}
	return nil
}

// parseKey reads NETWORK CLASS FINGERPRINT from args.
func parseKey(args []string) (store.Key, error) {
	if len(args) != 3 {
		return store.Key{}, usagef("expected NETWORK CLASS FINGERPRINT, got %d arguments", len(args))
	}
	key := store.Key{Network: asset.Network(args[0]), Class: asset.Class(args[1]), Fingerprint: args[2]}
	if !config.DefaultPolicy().AllowsClass(key.Class) {
		return store.Key{}, usagef("unknown class %q (one of {%s,%s})", key.Class, asset.ClassMetadata, asset.ClassRegistry)
	}
	if key.Fingerprint == "" {
		return store.Key{}, usagef("fingerprint must not be empty")
	}
	return key, nil
}
