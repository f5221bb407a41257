package models

import (
	"time"

	"tree-sync/core/reconcile"
)

// Tree is one row of a tree table.
type Tree struct {
	ID             string     `gorm:"column:id;primaryKey;size:128"`
	Strname        *string    `gorm:"column:strname;size:255"`
	Hausnr         *string    `gorm:"column:hausnr;size:32"`
	ArtBot         *string    `gorm:"column:art_bot;size:255"`
	ArtDtsch       *string    `gorm:"column:art_dtsch;size:255"`
	Standortnr     *string    `gorm:"column:standortnr;size:64"`
	Baumhoehe      *float64   `gorm:"column:baumhoehe"`
	Stammdurch     *float64   `gorm:"column:stammdurch"`
	Kronedurch     *float64   `gorm:"column:kronedurch"`
	AendDat        *time.Time `gorm:"column:aend_dat;type:date"`
	Gattung        *string    `gorm:"column:gattung;size:128"`
	GattungDeutsch *string    `gorm:"column:gattung_deutsch;size:128"`
	Pflanzjahr     *int64     `gorm:"column:pflanzjahr"`
	Stammumfg      *float64   `gorm:"column:stammumfg"`
	Lat            *float64   `gorm:"column:lat"`
	Lng            *float64   `gorm:"column:lng"`
	Bezirk         *string    `gorm:"column:bezirk;size:128"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

// ToRow converts the model to a raw record row keyed by column name.
func (t Tree) ToRow() reconcile.Row {
	return reconcile.Row{
		"id":              t.ID,
		"strname":         t.Strname,
		"hausnr":          t.Hausnr,
		"art_bot":         t.ArtBot,
		"art_dtsch":       t.ArtDtsch,
		"standortnr":      t.Standortnr,
		"baumhoehe":       t.Baumhoehe,
		"stammdurch":      t.Stammdurch,
		"kronedurch":      t.Kronedurch,
		"aend_dat":        t.AendDat,
		"gattung":         t.Gattung,
		"gattung_deutsch": t.GattungDeutsch,
		"pflanzjahr":      t.Pflanzjahr,
		"stammumfg":       t.Stammumfg,
		"lat":             t.Lat,
		"lng":             t.Lng,
		"bezirk":          t.Bezirk,
	}
}

// FromRecord builds a model from a normalized record.
func FromRecord(rec reconcile.TreeRecord) Tree {
	a := rec.Attributes
	return Tree{
		ID:             rec.ID,
		Strname:        stringPtr(a["strname"]),
		Hausnr:         stringPtr(a["hausnr"]),
		ArtBot:         stringPtr(a["art_bot"]),
		ArtDtsch:       stringPtr(a["art_dtsch"]),
		Standortnr:     stringPtr(a["standortnr"]),
		Baumhoehe:      floatPtr(a["baumhoehe"]),
		Stammdurch:     floatPtr(a["stammdurch"]),
		Kronedurch:     floatPtr(a["kronedurch"]),
		AendDat:        timePtr(a["aend_dat"]),
		Gattung:        stringPtr(a["gattung"]),
		GattungDeutsch: stringPtr(a["gattung_deutsch"]),
		Pflanzjahr:     intPtr(a["pflanzjahr"]),
		Stammumfg:      floatPtr(a["stammumfg"]),
		Lat:            floatPtr(a["lat"]),
		Lng:            floatPtr(a["lng"]),
		Bezirk:         stringPtr(a["bezirk"]),
	}
}

func stringPtr(v any) *string {
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}

func floatPtr(v any) *float64 {
	if f, ok := v.(float64); ok {
		return &f
	}
	return nil
}

func intPtr(v any) *int64 {
	if i, ok := v.(int64); ok {
		return &i
	}
	return nil
}

func timePtr(v any) *time.Time {
	if t, ok := v.(time.Time); ok {
		return &t
	}
	return nil
}
