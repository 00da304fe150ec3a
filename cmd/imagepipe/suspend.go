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
		Use:   "suspend",
		Short: "demonstrate write suspension: hold a batch of writes queued, then resume them",
		Long: `suspend opens an image, suspends its write queue, issues a batch of
synthetic writes that queue behind the suspension, reports the held
queue depth, then resumes and waits for the batch to drain.

Suspension state lives on the in-memory work queue for the lifetime of
this process only; there is no separate "resume" to run against a
different invocation.`,
		RunE: runSuspend,
	}
	cmd.Flags().Int("writes", 5, "number of synthetic writes to queue")
	cmd.Flags().String("write-size", "4KiB", "size of each synthetic write")
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		logger.Warn().Err(err).Msg("imagepipe: failed to bind suspend flags to viper")
	}
	rootCmd.AddCommand(cmd)
}

func runSuspend(cmd *cobra.Command, args []string) error {
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

	return runSuspendResumeDemo(cmd.Context(), p, count, size, true)
}
