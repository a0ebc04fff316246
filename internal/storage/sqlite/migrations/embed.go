package migrations

import "embed"

// FS contains the embedded results ledger migrations.
//
//go:embed *.sql
var FS embed.FS
