// Package all wires every built-in storage backend into the storage factory.
//
// The package exists purely for side effects: importing it (usually as a
// blank import from main) runs the init functions of each backend, which
// register themselves with storage.Register. After that the kinds "sqlite",
// "postgres", "mysql", "mssql", "mongo" and "duckdb" are available to
// storage.Open.
//
// A binary that needs only the PUDL SQLite files can import
// ferc/internal/storage/sqlite directly instead.
package all

import (
	_ "ferc/internal/storage/duckdb"
	_ "ferc/internal/storage/mongo"
	_ "ferc/internal/storage/mssql"
	_ "ferc/internal/storage/mysql"
	_ "ferc/internal/storage/postgres"
	_ "ferc/internal/storage/sqlite"
)
