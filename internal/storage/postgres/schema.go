package postgres

import _ "embed"

// Schema holds the DDL for the ledger tables, applied by cmd/migrate.
//
//go:embed schema.sql
var Schema string
