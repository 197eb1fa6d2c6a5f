// Package venmo extracts structured payment candidates from Venmo payment
// notification emails. The input is unstructured text, so extraction is a
// pipeline of ordered pattern attempts returning the first success.
package venmo

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jessebugclark-dot/Jesselovesmovies/internal/domain"
)

// Result classifies what a notification email turned out to be.
type Result int

const (
	// Matched means a payment candidate with an order code was extracted.
	Matched Result = iota
	// NotAPayment means the subject is not a payment-received notification.
	NotAPayment
	// NoReference means the payment carries no recognizable order code.
	// Such payments are never auto-matched: correlating money to an order
	// without a code risks misattributing funds.
	NoReference
)

func (r Result) String() string {
	switch r {
	case Matched:
		return "matched"
	case NotAPayment:
		return "not_a_payment"
	case NoReference:
		return "no_reference"
	default:
		return "unknown"
	}
}

var (
	payerRe  = regexp.MustCompile(`(?i)^(.+?)\s+(paid|sent)\s+you`)
	amountRe = regexp.MustCompile(`\$([0-9,]+\.[0-9]{2})`)

	// Note patterns are tried in order; first match wins.
	notePrefixRes = []*regexp.Regexp{
		regexp.MustCompile(`[Ff]or[:\s]+"([^"]+)"`),
		regexp.MustCompile(`[Nn]ote[:\s]+"([^"]+)"`),
		regexp.MustCompile(`[Mm]essage[:\s]+"([^"]+)"`),
	}
)

// Parser turns notification subject/body text into a payment candidate.
// It is safe for concurrent use.
type Parser struct {
	prefix      string
	codeRe      *regexp.Regexp
	quotedOrder *regexp.Regexp
}

// NewParser builds a parser for order codes of the form <prefix>-XXXXXX.
func NewParser(prefix string) *Parser {
	quoted := regexp.QuoteMeta(prefix)
	return &Parser{
		prefix:      prefix,
		codeRe:      regexp.MustCompile(`(?i)` + quoted + `-[A-Z0-9]{6}`),
		quotedOrder: regexp.MustCompile(`(?i)"([^"]*` + quoted + `[^"]*)"`),
	}
}

// Parse extracts a payment candidate from raw subject and body text. It never
// fails on malformed input; anything unrecognizable comes back as NotAPayment
// or NoReference.
//
// Known limitation: when the body quotes several dollar figures (historical
// transactions, promotions) the first occurrence wins. The reconciliation
// amount check catches a wrong pick as a mismatch rather than a settlement.
func (p *Parser) Parse(subject, body string) (domain.Payment, Result) {
	lower := strings.ToLower(subject)
	if !strings.Contains(lower, "paid you") && !strings.Contains(lower, "sent you") {
		return domain.Payment{}, NotAPayment
	}

	payer := "Unknown"
	if m := payerRe.FindStringSubmatch(subject); m != nil {
		payer = strings.TrimSpace(m[1])
	}

	amount := decimal.Zero
	if m := amountRe.FindStringSubmatch(body); m != nil {
		raw := strings.ReplaceAll(m[1], ",", "")
		if d, err := decimal.NewFromString(raw); err == nil {
			amount = d
		}
	}

	note := p.extractNote(body)

	// The code must appear inside the extracted note, not anywhere in the
	// body. Codes floating elsewhere in the email (footers, quoted threads)
	// are not treated as payment references.
	code := p.codeRe.FindString(note)
	if code == "" {
		return domain.Payment{}, NoReference
	}

	return domain.Payment{
		OrderCode: strings.ToUpper(code),
		Amount:    amount,
		PayerName: payer,
		Note:      note,
	}, Matched
}

func (p *Parser) extractNote(body string) string {
	for _, re := range notePrefixRes {
		if m := re.FindStringSubmatch(body); m != nil && m[1] != "" {
			return strings.TrimSpace(m[1])
		}
	}
	if m := p.quotedOrder.FindStringSubmatch(body); m != nil && m[1] != "" {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// Note builds the payment note shown to buyers at checkout, e.g.
// `DA25-AB12CD jane@example.com`.
func Note(orderCode, email string) string {
	return fmt.Sprintf("%s %s", orderCode, email)
}
