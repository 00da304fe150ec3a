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
		Use:   "read",
		Short: "read a range of an image and write it to stdout",
		RunE:  runRead,
	}
	cmd.Flags().Uint64("offset", 0, "byte offset to read from")
	cmd.Flags().String("length", "4KiB", "number of bytes to read")
	cmd.Flags().String("out", "", "file to write the data to, instead of stdout")
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		logger.Warn().Err(err).Msg("imagepipe: failed to bind read flags to viper")
	}
	rootCmd.AddCommand(cmd)
}

func runRead(cmd *cobra.Command, args []string) error {
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

	buf := make([]byte, length)
	n, err := p.wq.Read(cmd.Context(), offset, buf)
	if err != nil {
		return fmt.Errorf("imagepipe: read: %w", err)
	}

	out := os.Stdout
	if path := f.String("out"); path != "" {
		w, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("imagepipe: create %s: %w", path, err)
		}
		defer w.Close()
		out = w
	}
	if _, err := out.Write(buf[:n]); err != nil {
		return fmt.Errorf("imagepipe: write output: %w", err)
	}
	if out == os.Stdout {
		fmt.Fprintf(os.Stderr, "read %s at offset %d\n", humanize.Bytes(uint64(n)), offset)
	}
	return nil
}
