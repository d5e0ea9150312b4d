package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// externalIDLen is the hex prefix length of the content hash. 64 bits of
// digest is far beyond collision concerns at per-account statement volume.
const externalIDLen = 16

// descriptionKeyLen bounds how much of the description feeds the identity,
// so trailing reference numbers that vary between statement exports do not
// break dedup.
const descriptionKeyLen = 20

// ExternalID derives the deterministic dedup key for a transaction. The
// amount contributes as its absolute canonical token ("4.50"), so a debit
// captured by the two-column pass and the same line re-read by the
// single-amount pass converge on one identity.
func ExternalID(date time.Time, amountCents int64, description string) string {
	if amountCents < 0 {
		amountCents = -amountCents
	}
	amountToken := decimal.New(amountCents, -2).StringFixed(2)

	desc := strings.ToLower(normalizeDescription(description))
	if len(desc) > descriptionKeyLen {
		desc = desc[:descriptionKeyLen]
	}

	composite := date.Format("2006-01-02") + "|" + amountToken + "|" + desc
	sum := sha256.Sum256([]byte(composite))
	return hex.EncodeToString(sum[:])[:externalIDLen]
}
