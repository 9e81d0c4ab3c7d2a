package web

import "embed"

// Templates embeds the proposal document and email templates.
//
//go:embed templates/*/*.html
var Templates embed.FS
