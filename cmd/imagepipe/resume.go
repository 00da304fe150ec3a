// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/LeeDigitalWorks/imagepipe/pkg/logger"
)

func init() {
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "demonstrate resuming a suspended write queue and draining it",
		Long: `resume runs the same suspend-then-drain cycle as suspend, but skips
printing the held queue depth, reporting only the final drain so its
output reads as a plain "writes resumed" confirmation.`,
		RunE: runResume,
	}
	cmd.Flags().Int("writes", 5, "number of synthetic writes to queue")
	cmd.Flags().String("write-size", "4KiB", "size of each synthetic write")
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		logger.Warn().Err(err).Msg("imagepipe: failed to bind resume flags to viper")
	}
	rootCmd.AddCommand(cmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	f := NewFlagLoader(cmd)
	count := f.Int("writes")
	size, err := f.Bytes("write-size")
	if err != nil {
		return fmt.Errorf("imagepipe: write-size: %w", err)
	}

	p, err := openPipeline(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	return runSuspendResumeDemo(cmd.Context(), p, count, size, false)
}
