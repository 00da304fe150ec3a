// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/LeeDigitalWorks/imagepipe/pkg/logger"
)

func init() {
	cmd := &cobra.Command{
		Use:   "write",
		Short: "write data from stdin (or --data) to an image at an offset",
		RunE:  runWrite,
	}
	cmd.Flags().Uint64("offset", 0, "byte offset to write at")
	cmd.Flags().String("data", "", "literal data to write, instead of reading stdin")
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		logger.Warn().Err(err).Msg("imagepipe: failed to bind write flags to viper")
	}
	rootCmd.AddCommand(cmd)
}

func runWrite(cmd *cobra.Command, args []string) error {
	f := NewFlagLoader(cmd)
	offset := f.Uint64("offset")

	var data []byte
	if lit := f.String("data"); lit != "" {
		data = []byte(lit)
	} else {
		buf, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("imagepipe: read stdin: %w", err)
		}
		data = buf
	}

	p, err := openPipeline(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	n, err := p.wq.Write(cmd.Context(), offset, data)
	if err != nil {
		return fmt.Errorf("imagepipe: write: %w", err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s at offset %d\n", humanize.Bytes(uint64(n)), offset)
	return nil
}
