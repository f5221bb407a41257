package trees

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tree-sync/core/reconcile"
	"tree-sync/core/utils"

	"github.com/parquet-go/parquet-go"
)

// SnapshotRow is one tree in a Parquet snapshot.
type SnapshotRow struct {
	ID             string   `parquet:"id,zstd"`
	Strname        *string  `parquet:"strname,optional,zstd"`
	Hausnr         *string  `parquet:"hausnr,optional,zstd"`
	ArtBot         *string  `parquet:"art_bot,optional,zstd"`
	ArtDtsch       *string  `parquet:"art_dtsch,optional,zstd"`
	Standortnr     *string  `parquet:"standortnr,optional,zstd"`
	Baumhoehe      *float64 `parquet:"baumhoehe,optional"`
	Stammdurch     *float64 `parquet:"stammdurch,optional"`
	Kronedurch     *float64 `parquet:"kronedurch,optional"`
	AendDat        *string  `parquet:"aend_dat,optional"`
	Gattung        *string  `parquet:"gattung,optional,zstd"`
	GattungDeutsch *string  `parquet:"gattung_deutsch,optional,zstd"`
	Pflanzjahr     *int64   `parquet:"pflanzjahr,optional"`
	Stammumfg      *float64 `parquet:"stammumfg,optional"`
	Lat            *float64 `parquet:"lat,optional"`
	Lng            *float64 `parquet:"lng,optional"`
	Bezirk         *string  `parquet:"bezirk,optional,zstd"`
}

// RecordToSnapshotRow converts a normalized record to a snapshot row.
func RecordToSnapshotRow(rec reconcile.TreeRecord) SnapshotRow {
	a := rec.Attributes
	row := SnapshotRow{
		ID:             rec.ID,
		Strname:        optString(a[AttrStreet]),
		Hausnr:         optString(a[AttrHouseNumber]),
		ArtBot:         optString(a[AttrSpecies]),
		ArtDtsch:       optString(a[AttrSpeciesGerman]),
		Standortnr:     optString(a[AttrLocationNumber]),
		Baumhoehe:      optFloat(a[AttrHeight]),
		Stammdurch:     optFloat(a[AttrTrunkDiameter]),
		Kronedurch:     optFloat(a[AttrCrownDiameter]),
		Gattung:        optString(a[AttrGenus]),
		GattungDeutsch: optString(a[AttrGenusGerman]),
		Stammumfg:      optFloat(a[AttrCircumference]),
		Lat:            optFloat(a[AttrLatitude]),
		Lng:            optFloat(a[AttrLongitude]),
		Bezirk:         optString(a[AttrDistrict]),
	}
	if d, ok := a[AttrLastChanged].(time.Time); ok {
		s := d.Format(utils.DateLayout)
		row.AendDat = &s
	}
	if y, ok := a[AttrPlantingYear].(int64); ok {
		row.Pflanzjahr = &y
	}
	return row
}

// ExportSnapshot writes every record of table to a zstd compressed Parquet
// file at path and returns the number of rows written.
func ExportSnapshot(ctx context.Context, store *Store, table, path string) (int, error) {
	records, err := store.Snapshot(ctx, table)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	writer := parquet.NewGenericWriter[SnapshotRow](f, parquet.Compression(&parquet.Zstd))

	all := records.Records()
	rows := make([]SnapshotRow, len(all))
	for i, rec := range all {
		rows[i] = RecordToSnapshotRow(rec)
	}

	n, err := writer.Write(rows)
	if err != nil {
		writer.Close()
		f.Close()
		return 0, fmt.Errorf("write rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		f.Close()
		return 0, fmt.Errorf("close writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close file: %w", err)
	}
	return n, nil
}

func optString(v any) *string {
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}

func optFloat(v any) *float64 {
	if f, ok := v.(float64); ok {
		return &f
	}
	return nil
}
