package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"tree-sync/core/reconcile"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	syncCanonicalTable string
	syncStagingTable   string
	syncDryRun         bool
)

// syncCmd reconciles an already loaded staging table into the canonical table.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the staging table into the canonical tree table",
	Long: `Compares the staging table with the canonical table and applies deletes,
updates and inserts in one transaction. Any failure rolls the whole run back.

Examples:
  # Sync the configured tables
  tree-sync sync

  # Report what would change without writing
  tree-sync sync --dry-run

  # Sync a differently named staging table
  tree-sync sync --staging-table trees_2025_01`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncCanonicalTable, "canonical-table", "", "Canonical table (default from TREES_CANONICAL_TABLE)")
	syncCmd.Flags().StringVar(&syncStagingTable, "staging-table", "", "Staging table (default from TREES_STAGING_TABLE)")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Compute the report without applying changes")
	RootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	svc, err := a.newTreeService()
	if err != nil {
		return err
	}

	canonical := a.cfg.Trees.CanonicalTable
	if syncCanonicalTable != "" {
		canonical = syncCanonicalTable
	}
	staging := a.cfg.Trees.StagingTable
	if syncStagingTable != "" {
		staging = syncStagingTable
	}

	report, err := svc.SyncTables(ctx, canonical, staging, syncDryRun)
	if err != nil {
		a.logger.Error("Sync failed", zap.Error(err), zap.Bool("retryable", reconcile.IsRetryable(err)))
		return err
	}

	logReport(a.logger, report)
	return nil
}

func logReport(l *zap.Logger, report *reconcile.SyncReport) {
	l.Info("Sync report",
		zap.Int("inserted", report.Inserted),
		zap.Int("updated", report.Updated),
		zap.Int("deleted", report.Deleted),
		zap.Int("unchanged", report.Unchanged),
		zap.Bool("dry_run", report.DryRun),
		zap.Time("completed_at", report.CompletedAt),
	)
}
