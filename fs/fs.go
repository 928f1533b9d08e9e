// Package appfs exposes the app's embedded database migrations and assets.
package appfs

import "embed"

//go:embed all:migrations all:assets
var FS embed.FS
