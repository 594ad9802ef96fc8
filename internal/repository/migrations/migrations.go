package migrations

import "embed"

// FS holds the goose schema files, versioned by their numeric prefix.
//
//go:embed *.sql
var FS embed.FS
