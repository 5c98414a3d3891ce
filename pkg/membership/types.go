package membership

import (
	"context"
	"fmt"
	"strings"
)

// Tier is the service level of an agent account.
type Tier string

const (
	TierBasic   Tier = "basic"
	TierAdvance Tier = "advance"
	TierPro     Tier = "pro"
)

// creditAllotments is the single allotment table consulted by every
// component that grants or resets credits.
var creditAllotments = map[Tier]int64{
	TierBasic:   5,
	TierAdvance: 15,
	TierPro:     30,
}

// ParseTier validates and normalizes a tier name.
func ParseTier(raw string) (Tier, error) {
	tier := Tier(strings.ToLower(strings.TrimSpace(raw)))
	if _, known := creditAllotments[tier]; !known {
		return "", fmt.Errorf("%w: %q", ErrInvalidTier, raw)
	}
	return tier, nil
}

// Allotment returns the credit quantity granted per refill period.
func (tier Tier) Allotment() int64 {
	return creditAllotments[tier]
}

// Paid reports whether the tier carries an enforced paid period.
func (tier Tier) Paid() bool {
	return tier == TierAdvance || tier == TierPro
}

// String returns the tier name.
func (tier Tier) String() string {
	return string(tier)
}

// Account is the membership view of an agent account. Timestamps are unix
// UTC seconds; zero means unset.
type Account struct {
	AccountID                  string
	Tier                       Tier
	CreditBalance              int64
	MembershipExpiresAtUnixUTC int64
	CreditsRefilledAtUnixUTC   int64
}

// TransactionStatusSucceeded is the only status Settle records.
const TransactionStatusSucceeded = "succeeded"

// Transaction records a settled provider payment. Immutable once created;
// the payment reference is unique across all transactions.
type Transaction struct {
	TransactionID    string
	AccountID        string
	AmountCents      int64
	Currency         string
	Status           string
	PaymentReference string
	MetadataJSON     string
	CreatedUnixUTC   int64
}

// EventPaymentSucceeded is the provider event type that settles an upgrade.
const EventPaymentSucceeded = "payment_intent.succeeded"

// PaymentEvent is the provider webhook payload consumed by Settle.
type PaymentEvent struct {
	Type             string
	AccountID        string
	Plan             string
	AmountCents      int64
	Currency         string
	PaymentReference string
}

// SweepReport summarizes one expiry sweep run.
type SweepReport struct {
	Scanned    int
	Downgraded int
	Failed     int
}

// Store is the persistence contract used by Service. UpgradeMembership and
// DowngradeExpired carry their credit arithmetic and preconditions into the
// store so concurrent writers cannot overwrite each other's committed state.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	GetAccount(ctx context.Context, accountID string) (Account, error)
	UpdateMembership(ctx context.Context, account Account) error
	DecrementCredit(ctx context.Context, accountID string) error
	UpgradeMembership(ctx context.Context, accountID string, tier Tier, expiresAtUnixUTC int64, creditDelta int64) error
	DowngradeExpired(ctx context.Context, accountID string, nowUnixUTC int64, creditBalance int64) (bool, error)
	ListExpiredAccounts(ctx context.Context, nowUnixUTC int64) ([]Account, error)
	CreateTransaction(ctx context.Context, transaction Transaction) error
}
