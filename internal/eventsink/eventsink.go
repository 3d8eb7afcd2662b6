// Package eventsink implements CAELES's append-only, per-capsule event
// log. There is no rotation, no fsync guarantee, and no cross-process
// coordination — appends rely on the host filesystem's append semantics.
package eventsink

import (
	"fmt"
	"os"
	"path/filepath"
)

// Path returns the event-sink file path for capsuleID under dir.
func Path(dir, capsuleID string) string {
	return filepath.Join(dir, fmt.Sprintf("events-%s.log", capsuleID))
}

// Append ensures dir exists and appends one line "key=<key> payload=<payload>\n"
// to the capsule's event file. The file is created on first use and is
// never truncated.
func Append(dir, capsuleID, key, payload string) (path string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("eventsink: create dir %s: %w", dir, err)
	}

	path = Path(dir, capsuleID)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("eventsink: open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "key=%s payload=%s\n", key, payload); err != nil {
		return "", fmt.Errorf("eventsink: write %s: %w", path, err)
	}

	return path, nil
}
