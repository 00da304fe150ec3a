// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// FlagLoader resolves configuration values with CLI flag precedence:
// when a flag is explicitly set on the invoking command it wins,
// otherwise viper's standard priority applies (env > config file >
// default).
type FlagLoader struct {
	cmd *cobra.Command
}

func NewFlagLoader(cmd *cobra.Command) *FlagLoader {
	return &FlagLoader{cmd: cmd}
}

func (f *FlagLoader) String(flagName string) string {
	if f.cmd.Flags().Changed(flagName) {
		val, _ := f.cmd.Flags().GetString(flagName)
		return val
	}
	return viper.GetString(flagName)
}

func (f *FlagLoader) Int(flagName string) int {
	if f.cmd.Flags().Changed(flagName) {
		val, _ := f.cmd.Flags().GetInt(flagName)
		return val
	}
	return viper.GetInt(flagName)
}

func (f *FlagLoader) Bool(flagName string) bool {
	if f.cmd.Flags().Changed(flagName) {
		val, _ := f.cmd.Flags().GetBool(flagName)
		return val
	}
	return viper.GetBool(flagName)
}

func (f *FlagLoader) Uint64(flagName string) uint64 {
	if f.cmd.Flags().Changed(flagName) {
		val, _ := f.cmd.Flags().GetUint64(flagName)
		return val
	}
	return viper.GetUint64(flagName)
}

// Bytes resolves a human-readable size flag such as "4MiB" or "64KB"
// into a byte count, falling back to viper the same way the scalar
// getters do.
func (f *FlagLoader) Bytes(flagName string) (uint64, error) {
	raw := f.String(flagName)
	if raw == "" {
		return 0, nil
	}
	return humanize.ParseBytes(raw)
}
