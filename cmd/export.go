package cmd

import (
	"context"
	"fmt"

	"tree-sync/feature/trees"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	exportTable string
	exportOut   string
)

// exportCmd writes a Parquet snapshot of a tree table.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a tree table as a Parquet snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		table := exportTable
		if table == "" {
			table = a.cfg.Trees.CanonicalTable
		}
		out := exportOut
		if out == "" {
			out = fmt.Sprintf("%s.parquet", table)
		}

		n, err := trees.ExportSnapshot(context.Background(), a.store, table, out)
		if err != nil {
			return err
		}
		a.logger.Info("Snapshot written", zap.String("table", table), zap.String("path", out), zap.Int("rows", n))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportTable, "table", "", "Table to export (default: canonical table)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output file (default: <table>.parquet)")
	RootCmd.AddCommand(exportCmd)
}
