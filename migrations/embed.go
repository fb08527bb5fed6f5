// Package migrations embeds the SQL schema so goose can apply it from the
// server, the dbtool and tests without a filesystem path.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
