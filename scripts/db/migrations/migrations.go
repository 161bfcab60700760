// Package migrations встраивает SQL-схему, применяемую при старте.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
