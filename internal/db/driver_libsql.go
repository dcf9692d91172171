//go:build libsql

package db

import (
	_ "github.com/tursodatabase/go-libsql"
)

// driverName selects the libSQL driver. Building with the libsql tag
// lets rowboat sync against Turso embedded replicas instead of plain
// database files.
const driverName = "libsql"
