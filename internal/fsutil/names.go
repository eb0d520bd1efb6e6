// Package fsutil holds file naming helpers shared by the tracker tools.
package fsutil

import (
	"net/url"
	"path/filepath"
	"strings"
)

const maxNameLen = 96

// SanitizeFilename maps an arbitrary identifier onto a portable file name.
// Runs of characters outside [A-Za-z0-9._-] collapse to a single underscore,
// and leading or trailing dots and underscores are dropped. An empty result
// becomes "unknown".
func SanitizeFilename(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range s {
		ok := r == '.' || r == '_' || r == '-' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			pending = b.Len() > 0
			continue
		}
		if pending {
			b.WriteByte('_')
			pending = false
		}
		if b.Len() >= maxNameLen {
			break
		}
		b.WriteRune(r)
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

// SourcePrefix derives an output file prefix from a sample source: the base
// name of a recording file, a stored session id, or the host of a tracker URL.
func SourcePrefix(recording, session, rawURL string) string {
	switch {
	case recording != "":
		base := filepath.Base(recording)
		return SanitizeFilename(strings.TrimSuffix(base, filepath.Ext(base)))
	case session != "":
		return SanitizeFilename("session_" + session)
	case rawURL != "":
		if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
			return SanitizeFilename("live_" + u.Host)
		}
		return SanitizeFilename("live_" + rawURL)
	}
	return "drift"
}
