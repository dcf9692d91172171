//go:build !libsql

package db

import (
	"github.com/ncruces/go-sqlite3"
	"github.com/tetratelabs/wazero"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// driverName selects the pure-Go WASM build of SQLite registered by the
// ncruces driver.
const driverName = "sqlite3"

func init() {
	// Cap the embedded engine's heap. Diff queries group entire
	// tables, which the default unbounded runtime would happily let
	// grow past physical memory. 4096 pages of 64 KiB is 256 MiB.
	sqlite3.RuntimeConfig = wazero.NewRuntimeConfig().
		WithMemoryLimitPages(4096)
}
