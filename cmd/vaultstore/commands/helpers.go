package commands

import (
	"time"

	"github.com/systmms/vaultstore/pkg/storage"
)

// displayName returns the entry name relative to the listed directory,
// with a trailing slash for directories
func displayName(entry *storage.Resource, parent storage.Path) string {
	name := entry.Path.RelativeTo(parent)
	if entry.Directory {
		name += "/"
	}
	return name
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return storage.FormatTime(t)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
