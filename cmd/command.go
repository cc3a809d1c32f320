// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "identitystore",
	Short: "Account and access-key identity store for an NSFS endpoint",
	Long: `identitystore is an operational CLI around a filesystem-native,
AWS-IAM-compatible account and access-key identity store.

It does not expose the IAM operations themselves (CreateUser, CreateAccessKey,
and friends are only reachable through the session-authenticated HTTP/XML
front end); it ships a reconciler, a schema dumper, and version metadata --
the kind of maintenance tooling every service in this family carries
alongside its core.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().String("root", "", "configuration root directory (or set IDENTITYSTORE_ROOT)")
	viper.BindPFlag("root", rootCmd.PersistentFlags().Lookup("root"))
	viper.SetEnvPrefix("identitystore")
	viper.AutomaticEnv()
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
