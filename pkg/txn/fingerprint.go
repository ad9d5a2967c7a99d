package txn

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// GraphFingerprint returns a short hex digest of the current serialization
// graph's sorted edge list. It is a debugging aid only: two runs that reach
// the same certified history produce the same fingerprint without needing
// to diff the full edge list by hand. It never appears in the event or
// dump text itself.
func (m *Manager) GraphFingerprint() string {
	edges := m.serial.Edges()

	var b strings.Builder
	for _, e := range edges {
		fmt.Fprintf(&b, "%d-%s->%d;", e.From, e.Label, e.To)
	}

	sum := blake2b.Sum256([]byte(b.String()))
	return fmt.Sprintf("%x", sum[:8])
}
