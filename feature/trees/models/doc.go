// Package models defines the GORM model of the tree tables and its conversion
// to and from the storage-agnostic reconcile records.
//
// The canonical and staging tables share the Tree model; the table name is
// chosen per query. UpdatedAt is a storage-internal audit column and is never
// part of a record.
package models
