// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/LeeDigitalWorks/imagepipe/pkg/logger"
)

func init() {
	cmd := &cobra.Command{
		Use:   "discard",
		Short: "punch a hole of a given length starting at an offset",
		RunE:  runDiscard,
	}
	cmd.Flags().Uint64("offset", 0, "byte offset to discard from")
	cmd.Flags().String("length", "4KiB", "number of bytes to discard")
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		logger.Warn().Err(err).Msg("imagepipe: failed to bind discard flags to viper")
	}
	rootCmd.AddCommand(cmd)
}

func runDiscard(cmd *cobra.Command, args []string) error {
	f := NewFlagLoader(cmd)
	offset := f.Uint64("offset")
	length, err := f.Bytes("length")
	if err != nil {
		return fmt.Errorf("imagepipe: length: %w", err)
	}

	p, err := openPipeline(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	if _, err := p.wq.Discard(cmd.Context(), offset, length); err != nil {
		return fmt.Errorf("imagepipe: discard: %w", err)
	}
	fmt.Fprintf(os.Stderr, "discarded %s at offset %d\n", humanize.Bytes(length), offset)
	return nil
}
