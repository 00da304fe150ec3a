// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "barrier every outstanding write and cache entry through to the backing store",
		RunE:  runFlush,
	}
	rootCmd.AddCommand(cmd)
}

func runFlush(cmd *cobra.Command, args []string) error {
	p, err := openPipeline(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	if _, err := p.wq.Flush(cmd.Context()); err != nil {
		return fmt.Errorf("imagepipe: flush: %w", err)
	}
	fmt.Fprintln(os.Stderr, "flush complete")
	return nil
}
