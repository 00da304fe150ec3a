// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/LeeDigitalWorks/imagepipe/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "imagepipe",
	Short: "imagepipe drives a striped, cached, journaled image pipeline",
	Long: `imagepipe is an operations CLI over the image I/O pipeline: a
striped, write-back-cached, journaled object-backed block image with
advisory exclusive locking, fronted by an admission work queue.

Each subcommand opens an image against the configured backend, performs
one operation, and tears the image back down, so state persists across
invocations only when --backend=local or --backend=s3 points at shared
storage.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetBool("verbose") {
			logger.SetLevel(zerolog.DebugLevel)
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("state-dir", "./imagepipe-data", "directory backing the local object store")
	flags.String("backend", "local", "object store backend: memory, local, or s3")
	flags.String("image-name", "demo", "image name, used as the object name prefix")
	flags.String("image-size", "64MiB", "logical image size")
	flags.String("object-size", "4MiB", "backing object size")
	flags.Bool("cache", false, "attach a write-back object cache")
	flags.Bool("journal", false, "attach an in-memory write journal")
	flags.String("lock", "none", "advisory lock mode: none, static, or raft")
	flags.Bool("nonblocking", false, "force every operation through the admission queue")
	flags.Int("concurrency", 4, "admission queue worker count")
	flags.Bool("verbose", false, "enable debug logging")

	flags.String("s3-bucket", "", "s3 backend: bucket name")
	flags.String("s3-region", "us-east-1", "s3 backend: region")
	flags.String("s3-endpoint", "", "s3 backend: endpoint override, for S3-compatible stores")
	flags.String("s3-access-key", "", "s3 backend: access key")
	flags.String("s3-secret-key", "", "s3 backend: secret key")

	flags.String("raft-node-id", "node1", "raft lock mode: this node's id")
	flags.String("raft-bind", "127.0.0.1:17946", "raft lock mode: bind address")

	viper.SetEnvPrefix("IMAGEPIPE")
	viper.AutomaticEnv()
	if err := viper.BindPFlags(flags); err != nil {
		logger.Warn().Err(err).Msg("imagepipe: failed to bind flags to viper")
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
