package invoice

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generator produces opaque invoice ids, unique enough to group the lines
// of one checkout.
type Generator func() string

// New returns INV-<yyyymmddhhmmss>-<8 hex chars> for the given instant.
func New(now time.Time) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return "INV-" + now.Format("20060102150405") + "-" + strings.ToUpper(token)
}

// Clocked builds a Generator stamping ids with clock().
func Clocked(clock func() time.Time) Generator {
	return func() string { return New(clock()) }
}
