// Package txid generates merchant transaction identifiers.
package txid

import (
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// MaxLength is the longest merchant transaction id the gateway accepts.
const MaxLength = 35

type Generator struct {
	now func() time.Time
	seq atomic.Uint32
}

func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// NewGeneratorWithClock is used by tests to pin the timestamp component.
func NewGeneratorWithClock(now func() time.Time) *Generator {
	return &Generator{now: now}
}

// Next returns "T" + unix millis (13 digits) + sequence (4 digits) + 8 hex
// chars of random entropy. The result is alphanumeric and URL safe.
func (g *Generator) Next() string {
	seq := g.seq.Add(1) % 10000
	r := uuid.New()
	return fmt.Sprintf("T%013d%04d%s", g.now().UnixMilli(), seq, hex.EncodeToString(r[:4]))
}

// UserID derives the merchant user id sent alongside a transaction.
func UserID(transactionID string) string {
	return "MUID" + transactionID
}
