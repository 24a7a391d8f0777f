package models

import "time"

// IntentKind различает два вида инвойсов в кэше.
type IntentKind string

const (
	IntentBuyIn   IntentKind = "buy_in"
	IntentDeposit IntentKind = "deposit"
)

// Intent is the cache payload behind a pending invoice, keyed by the
// normalized payment hash. It lives until the payment settles or the TTL
// expires, whichever comes first.
type Intent struct {
	Kind           IntentKind `json:"kind"`
	UserID         string     `json:"user_id"`
	TournamentID   string     `json:"tournament_id,omitempty"`
	AmountSats     int64      `json:"amount_sats"`
	PaymentRequest string     `json:"payment_request"`
	CreatedAt      time.Time  `json:"created_at"`
}

type InvoiceResponse struct {
	PaymentRequest string `json:"paymentRequest"`
	PaymentHash    string `json:"paymentHash"`
	AmountSats     int64  `json:"amountSats"`
	ExpiresIn      int64  `json:"expiresIn"`
}

type StatusResponse struct {
	Paid             bool  `json:"paid"`
	Expired          bool  `json:"expired,omitempty"`
	AlreadyProcessed bool  `json:"alreadyProcessed,omitempty"`
	AmountSats       int64 `json:"amountSats,omitempty"`
}

// WebhookPayload is the inbound LNbits notification; unknown fields are
// ignored.
type WebhookPayload struct {
	PaymentHash string `json:"payment_hash"`
	Paid        bool   `json:"paid"`
}
