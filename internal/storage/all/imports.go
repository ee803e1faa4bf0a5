// Package all wires all built-in destinations into the storage factory.
//
// It exists purely for side effects: importing it runs the init functions of
// each backend, which register their factories with the storage package and
// make these kinds available at runtime:
//
//   - "postgres" (socrata2sql/internal/storage/postgres)
//   - "sqlite"   (socrata2sql/internal/storage/sqlite)
//   - "mysql"    (socrata2sql/internal/storage/mysql)
//   - "mssql"    (socrata2sql/internal/storage/mssql)
//
// Typical usage:
//
//	import _ "socrata2sql/internal/storage/all"
//
//	cfg, err := storage.ParseURL(databaseURL)
//	dst, err := storage.New(ctx, cfg)
//	defer dst.Close()
//
// A binary that needs only a subset of backends can import those packages
// directly instead.
package all

import (
	_ "socrata2sql/internal/storage/mssql"
	_ "socrata2sql/internal/storage/mysql"
	_ "socrata2sql/internal/storage/postgres"
	_ "socrata2sql/internal/storage/sqlite"
)
