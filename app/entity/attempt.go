package entity

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

// GatewaySettings addresses the authentication provider for one merchant.
// Resolved once per attempt and immutable afterwards.
type GatewaySettings struct {
	CustomerID         string
	CountryCode        string
	ProductCode        string
	ProductDescription string
	CommissionPct      float64
}

// CardInput is the transient card payload for one attempt. It lives only in
// process memory and must be re-supplied by the caller at every step; nothing
// beyond the last four digits may leave this process through logs or the
// system of record.
type CardInput struct {
	PAN         string
	CVV         string
	ExpiryMonth string
	ExpiryYear  string
	HolderName  string
	Address     string
	City        string
	Zip         string
	Country     string

	AmountCents int64
	Currency    string
}

func (c CardInput) Last4() string {
	digits := strings.TrimSpace(c.PAN)
	if len(digits) < 4 {
		return digits
	}
	return digits[len(digits)-4:]
}

// CorrelationTokens thread one logical attempt across stateless round trips.
// Whichever party mints a token is authoritative for it; consumers pass it
// back unchanged. The refid sent at verification must equal the refid
// established at the DDC/auth step or the provider-side session is invalid.
type CorrelationTokens struct {
	Colref               string
	Refid                string
	TransactionReference string
}

// DDCDescriptor tells the browser where to run device-data collection.
type DDCDescriptor struct {
	URL                  string
	JWT                  string
	Bin                  string
	TransactionReference string
}

// ChallengeDescriptor describes the bank-hosted interactive challenge.
// Valid for a single use.
type ChallengeDescriptor struct {
	URL string
	JWT string
	MD  string
	Bin string
}

// DDCResult is what device-data collection yields. Synthesized marks a
// fallback colref minted locally after the deadline expired; the provider
// may reject it at the auth step.
type DDCResult struct {
	Colref      string
	Refid       string
	Synthesized bool
}

type FeeQuote struct {
	USDCRate    float64
	PoolBalance float64
	FeeBase     float64
	FeePercent  float64
}

// Fallback quote used when the fee endpoint is unreachable. The quote only
// feeds display fields of the provider schema, never the charge decision.
var FallbackFeeQuote = FeeQuote{FeeBase: 0.2, FeePercent: 5.1}

type OutcomeKind int32

const (
	OutcomeDdcRequired       OutcomeKind = 1
	OutcomeChallengeRequired OutcomeKind = 2
	OutcomeDeclined          OutcomeKind = 3
	OutcomeSettled           OutcomeKind = 4
)

// AttemptOutcome is the classified result of one flow step. Declined and
// Settled are terminal; only Settled carries a provider-issued order id.
type AttemptOutcome struct {
	Kind OutcomeKind

	Ddc       *DDCDescriptor
	Challenge *ChallengeDescriptor

	// Reference supersedes the attempt refid for the rest of the flow
	// when the auth step returns a fresh one.
	Reference string

	OrderID string
	Reason  string
}

const (
	StatusPaid   = "PAID"
	StatusFailed = "FAILED"
)

// StatusPatch is the partial field set reported to the system of record.
// PaymentID addressing lives with the caller; identical patches must be safe
// to apply twice.
type StatusPatch struct {
	Status           string     `json:"status"`
	CardLast4        *string    `json:"cardLast4,omitempty"`
	PaymentMethod    *string    `json:"paymentMethod,omitempty"`
	GatewayPaymentID *string    `json:"gatewayPaymentId,omitempty"`
	PaidAt           *time.Time `json:"paidAt,omitempty"`
	FailureMessage   *string    `json:"failureMessage,omitempty"`
}

const pendingOrderPrefix = "PEND-"

const refidAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewRefid mints the 16-alphanumeric correlation token this system is
// authoritative for.
func NewRefid() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = refidAlphabet[int(b)%len(refidAlphabet)]
	}
	return string(buf)
}

// NewPendingOrderID labels a not-yet-settled attempt for display. It must
// never be mistaken for a provider-issued settlement id.
func NewPendingOrderID() string {
	buf := make([]byte, 3)
	_, _ = rand.Read(buf)
	digits := fmt.Sprintf("%06d", (int(buf[0])<<16|int(buf[1])<<8|int(buf[2]))%1000000)
	return fmt.Sprintf("%s%d-%s", pendingOrderPrefix, time.Now().Unix(), digits)
}

func IsPlaceholderOrderID(orderID string) bool {
	return strings.HasPrefix(orderID, pendingOrderPrefix)
}
