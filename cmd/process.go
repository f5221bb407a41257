package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"tree-sync/feature/trees"

	"github.com/spf13/cobra"
)

var processOpts trees.ProcessOptions

// treesCmd is the parent command for tree data operations.
var treesCmd = &cobra.Command{
	Use:   "trees",
	Short: "Tree inventory operations",
}

// treesProcessCmd runs the whole tree pipeline.
var treesProcessCmd = &cobra.Command{
	Use:   "process",
	Short: "Transform the tree inventory, store it and sync it to the database",
	Long: `Reads the city shape and the raw tree inventory, transforms the trees to
the tree schema, stores the result as GeoJSON, loads it into the staging table
and reconciles the staging table into the canonical table.

Examples:
  # Full run with the configured resource names
  tree-sync trees process

  # Use another inventory export
  tree-sync trees process -t s_wfs_baumbestand_2025-02-01

  # Re-upload the previously transformed GeoJSON
  tree-sync trees process --skip-transform --skip-store-as-geojson`,
	RunE: runTreesProcess,
}

func init() {
	f := treesProcessCmd.Flags()
	f.StringVarP(&processOpts.CityShapeName, "city-shape-geojson-file-name", "c", "", "GeoJSON file name of the city shape")
	f.StringVarP(&processOpts.TreesName, "trees-geojson-file-name", "t", "", "GeoJSON file name of the tree inventory")
	f.StringVarP(&processOpts.GeoJSONName, "geojson-file-name", "j", "", "File name to store the transformed GeoJSON under")
	f.StringVarP(&processOpts.StagingTable, "database-table-name", "d", "", "Staging table to load the transformed trees into")
	f.BoolVar(&processOpts.SkipTransform, "skip-transform", false, "Reuse the stored transformed GeoJSON")
	f.BoolVar(&processOpts.SkipStoreGeoJSON, "skip-store-as-geojson", false, "Do not store the transformed GeoJSON")
	f.BoolVar(&processOpts.SkipUpload, "skip-upload-to-db", false, "Do not load the staging table nor sync")
	f.BoolVar(&processOpts.DryRun, "dry-run", false, "Load the staging table but do not apply the sync")

	treesCmd.AddCommand(treesProcessCmd)
	RootCmd.AddCommand(treesCmd)
}

func runTreesProcess(cmd *cobra.Command, args []string) error {
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

	report, err := svc.Process(ctx, processOpts)
	if err != nil {
		return err
	}
	if report == nil {
		a.logger.Info("Upload skipped, nothing synced")
		return nil
	}

	logReport(a.logger, report)
	return nil
}
