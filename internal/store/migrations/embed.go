package migrations

import "embed"

// FS holds the local store schema. Each new collection bumps the version.
//
//go:embed *.sql
var FS embed.FS
