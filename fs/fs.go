// Package appfs embeds the database migrations and the email templates.
package appfs

import "embed"

//go:embed migrations all:templates
var FS embed.FS
