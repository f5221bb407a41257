// Package utils provides common utility functions for the tree-sync application.
// It includes helper functions for loose type conversion (numbers, strings, dates)
// used at the boundaries where values arrive from GeoJSON properties or database
// drivers in whatever Go type they happen to decode to.
package utils
