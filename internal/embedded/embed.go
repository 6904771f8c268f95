package embedded

import (
	"embed"
)

// Content holds the default configuration and rule files. They are used when no
// external copy exists on disk.
//
//go:embed config/*.yaml
var Content embed.FS
