// Package migrations встраивает SQL файлы миграций схемы.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
