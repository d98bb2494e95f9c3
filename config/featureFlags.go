package config

import (
	"os"
	"strings"
)

// FixtureMode routes the API client at the in-process fixture backend instead
// of the real dormitory server. Matches the runtime fixture switch the web
// client honors.
//
// Set via env:
// - DORMOPS_FIXTURE=1
func FixtureMode() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("DORMOPS_FIXTURE")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// DraftPurgeLocking serializes PurgeStale across kiosk processes through a
// redis lock. Disable on single-terminal installs where redis is absent.
//
// Set via env:
// - DRAFT_PURGE_LOCKING=false
func DraftPurgeLocking() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("DRAFT_PURGE_LOCKING")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
