// Package migrations хранит SQL-схему журнала задач.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
