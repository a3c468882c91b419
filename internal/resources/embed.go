// Package resources provides the files shown at the root of every mount.
package resources

import "embed"

//go:embed files
var Assets embed.FS
