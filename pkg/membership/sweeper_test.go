package membership

import (
	"context"
	"errors"
	"testing"
)

func TestSweepDowngradesOnlyExpiredPaidAccounts(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	store.accounts["expired-pro"] = Account{
		AccountID:                  "expired-pro",
		Tier:                       TierPro,
		CreditBalance:              12,
		MembershipExpiresAtUnixUTC: fixedNowUnixUTC - secondsPerDay,
	}
	store.accounts["plain-basic"] = Account{
		AccountID:     "plain-basic",
		Tier:          TierBasic,
		CreditBalance: 4,
	}
	store.accounts["active-advance"] = Account{
		AccountID:                  "active-advance",
		Tier:                       TierAdvance,
		CreditBalance:              9,
		MembershipExpiresAtUnixUTC: fixedNowUnixUTC + secondsPerDay,
	}
	service := mustNewService(t, store)

	report, err := service.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Scanned != 1 || report.Downgraded != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	downgraded := store.accounts["expired-pro"]
	if downgraded.Tier != TierBasic {
		t.Fatalf("expected downgrade to basic, got %s", downgraded.Tier)
	}
	if downgraded.CreditBalance != TierBasic.Allotment() {
		t.Fatalf("expected basic allotment %d, got %d", TierBasic.Allotment(), downgraded.CreditBalance)
	}
	if store.accounts["plain-basic"].CreditBalance != 4 {
		t.Fatalf("expected basic account untouched")
	}
	if store.accounts["active-advance"].Tier != TierAdvance {
		t.Fatalf("expected active membership untouched")
	}
}

func TestSweepSkipsAccountRenewedAfterScan(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	store.accounts["renewed"] = Account{
		AccountID:                  "renewed",
		Tier:                       TierPro,
		CreditBalance:              2,
		MembershipExpiresAtUnixUTC: fixedNowUnixUTC - secondsPerDay,
	}
	// A settlement lands between the scan and the downgrade write.
	store.afterList = func() {
		account := store.accounts["renewed"]
		account.MembershipExpiresAtUnixUTC = fixedNowUnixUTC + 30*secondsPerDay
		account.CreditBalance += TierPro.Allotment()
		store.accounts["renewed"] = account
	}
	service := mustNewService(t, store)

	report, err := service.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Scanned != 1 || report.Downgraded != 0 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	account := store.accounts["renewed"]
	if account.Tier != TierPro {
		t.Fatalf("expected the renewal to win over the stale scan, got %s", account.Tier)
	}
	if account.CreditBalance != 32 {
		t.Fatalf("expected renewed balance 32, got %d", account.CreditBalance)
	}
	if account.MembershipExpiresAtUnixUTC != fixedNowUnixUTC+30*secondsPerDay {
		t.Fatalf("expected renewed expiry kept, got %d", account.MembershipExpiresAtUnixUTC)
	}
}

func TestSweepIsolatesPerAccountFailures(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	store.accounts["broken"] = Account{
		AccountID:                  "broken",
		Tier:                       TierPro,
		MembershipExpiresAtUnixUTC: fixedNowUnixUTC - secondsPerDay,
	}
	store.accounts["healthy"] = Account{
		AccountID:                  "healthy",
		Tier:                       TierAdvance,
		MembershipExpiresAtUnixUTC: fixedNowUnixUTC - secondsPerDay,
	}
	store.updateErrs["broken"] = errors.New("write refused")
	service := mustNewService(t, store)

	report, err := service.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Scanned != 2 || report.Downgraded != 1 || report.Failed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if store.accounts["healthy"].Tier != TierBasic {
		t.Fatalf("expected healthy account downgraded despite sibling failure")
	}
	if store.accounts["broken"].Tier != TierPro {
		t.Fatalf("expected broken account left as-is")
	}
}

func TestSweepPropagatesListFailure(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	store.listErr = errors.New("store offline")
	service := mustNewService(t, store)

	_, err := service.Sweep(context.Background())
	if err == nil {
		t.Fatalf("expected error when listing fails")
	}
}
