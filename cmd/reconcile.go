package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shirady/noobaa-core/pkg/config"
	"github.com/shirady/noobaa-core/pkg/identitystore"
	"github.com/shirady/noobaa-core/pkg/masterkey"
)

var reconcileConfigPath string

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Heal dangling or missing access-key index entries",
	Long: `Scans accounts/*.json and access_keys/*.symlink in both directions and
repairs the index: recreates any access key's missing symlink, and removes
any symlink whose target account no longer carries that key or no longer
exists.`,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().StringVar(&reconcileConfigPath, "config", "", "path to a config file")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(reconcileConfigPath)
	if err != nil {
		return err
	}

	loader := NewFlagLoader(cmd)
	if root := loader.String("root"); root != "" {
		cfg.Root = root
	}
	if cfg.Root == "" {
		return fmt.Errorf("reconcile: no configuration root set (--root, IDENTITYSTORE_ROOT, or config file)")
	}

	secret, err := cfg.MasterKeySecret()
	if err != nil {
		return err
	}
	keyRing, err := masterkey.NewKeyRing(secret)
	if err != nil {
		return err
	}
	if err := keyRing.Init(ctx); err != nil {
		return err
	}

	cacheInvalidator := identitystore.NewCacheInvalidator(ctx)
	store, err := identitystore.NewStore(ctx, cfg.Root, keyRing, cacheInvalidator)
	if err != nil {
		return err
	}

	report, err := store.Reconcile(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "symlinks created: %d\n", len(report.SymlinksCreated))
	for _, k := range report.SymlinksCreated {
		fmt.Fprintf(cmd.OutOrStdout(), "  + %s\n", k)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "symlinks removed: %d\n", len(report.SymlinksRemoved))
	for _, k := range report.SymlinksRemoved {
		fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", k)
	}
	return nil
}
