// Package database handles database connections and schema inspection.
//
// It provides a wrapper around GORM (Go Object Relational Mapping) to configure
// MySQL or SQLite connections based on the application's configuration.
//
// # Connect
//
// Connect opens the configured dialect with GORM's logger silenced and error
// translation enabled, so that duplicate-key and foreign-key failures surface
// as gorm.ErrDuplicatedKey / gorm.ErrForeignKeyViolated regardless of driver.
//
// # Schema Inspection
//
// GetTableColumns lists the columns of a table (SHOW COLUMNS on MySQL,
// PRAGMA table_info on SQLite). The tree store uses it to verify that the
// canonical and staging tables carry every schema attribute before a sync
// opens its transaction.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	columns, err := database.GetTableColumns(ctx, db, "trees")
package database
