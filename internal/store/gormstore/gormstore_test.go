package gormstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/casafind/casafind/internal/listing"
	"github.com/casafind/casafind/pkg/membership"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "casafind.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return New(db)
}

func seedAgent(t *testing.T, store *Store, agent Agent) string {
	t.Helper()
	if agent.MembershipTier == "" {
		agent.MembershipTier = membership.TierBasic.String()
	}
	if agent.Email == "" {
		agent.Email = agent.AgentID + "@example.com"
	}
	if agent.PasswordHash == "" {
		agent.PasswordHash = "x"
	}
	if err := store.db.Create(&agent).Error; err != nil {
		t.Fatalf("seed agent: %v", err)
	}
	return agent.AgentID
}

func TestGetAccountUnknownID(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	_, err := store.GetAccount(context.Background(), "missing")
	if !errors.Is(err, membership.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestUpdateMembershipRoundTrip(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	agentID := seedAgent(t, store, Agent{AgentID: "a1", Email: "a1@example.com"})

	now := time.Now().UTC().Truncate(time.Second)
	want := membership.Account{
		AccountID:                  agentID,
		Tier:                       membership.TierPro,
		CreditBalance:              30,
		MembershipExpiresAtUnixUTC: now.AddDate(0, 1, 0).Unix(),
		CreditsRefilledAtUnixUTC:   now.Unix(),
	}
	if err := store.UpdateMembership(context.Background(), want); err != nil {
		t.Fatalf("update membership: %v", err)
	}
	got, err := store.GetAccount(context.Background(), agentID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", want, got)
	}
}

func TestDecrementCreditGuardsMinimumBalance(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	agentID := seedAgent(t, store, Agent{AgentID: "a2", Email: "a2@example.com", CreditBalance: 1})

	if err := store.DecrementCredit(context.Background(), agentID); err != nil {
		t.Fatalf("first decrement: %v", err)
	}
	err := store.DecrementCredit(context.Background(), agentID)
	if !errors.Is(err, membership.ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	got, err := store.GetAccount(context.Background(), agentID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if got.CreditBalance != 0 {
		t.Fatalf("expected balance 0, got %d", got.CreditBalance)
	}
}

func TestUpgradeMembershipAddsCreditsInSQL(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	agentID := seedAgent(t, store, Agent{AgentID: "a5", Email: "a5@example.com", CreditBalance: 3})

	expiry := time.Now().UTC().Truncate(time.Second).AddDate(0, 1, 0)
	if err := store.UpgradeMembership(context.Background(), agentID, membership.TierPro, expiry.Unix(), membership.TierPro.Allotment()); err != nil {
		t.Fatalf("upgrade membership: %v", err)
	}
	got, err := store.GetAccount(context.Background(), agentID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if got.Tier != membership.TierPro {
		t.Fatalf("expected pro tier, got %s", got.Tier)
	}
	if got.CreditBalance != 33 {
		t.Fatalf("expected 3+30 credits, got %d", got.CreditBalance)
	}
	if got.MembershipExpiresAtUnixUTC != expiry.Unix() {
		t.Fatalf("expected expiry %d, got %d", expiry.Unix(), got.MembershipExpiresAtUnixUTC)
	}

	err = store.UpgradeMembership(context.Background(), "missing", membership.TierPro, expiry.Unix(), 30)
	if !errors.Is(err, membership.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestDowngradeExpiredGuardsRenewedAccounts(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	now := time.Now().UTC()
	yesterday := now.Add(-24 * time.Hour)
	nextMonth := now.AddDate(0, 1, 0)

	lapsedID := seedAgent(t, store, Agent{AgentID: "lapsed", Email: "l@example.com", MembershipTier: "pro", CreditBalance: 12, MembershipExpiresAt: &yesterday})
	renewedID := seedAgent(t, store, Agent{AgentID: "renewed", Email: "r@example.com", MembershipTier: "pro", CreditBalance: 35, MembershipExpiresAt: &nextMonth})

	downgraded, err := store.DowngradeExpired(context.Background(), lapsedID, now.Unix(), membership.TierBasic.Allotment())
	if err != nil {
		t.Fatalf("downgrade lapsed: %v", err)
	}
	if !downgraded {
		t.Fatalf("expected lapsed account to downgrade")
	}
	got, err := store.GetAccount(context.Background(), lapsedID)
	if err != nil {
		t.Fatalf("get lapsed: %v", err)
	}
	if got.Tier != membership.TierBasic || got.CreditBalance != membership.TierBasic.Allotment() {
		t.Fatalf("expected basic/%d, got %s/%d", membership.TierBasic.Allotment(), got.Tier, got.CreditBalance)
	}

	downgraded, err = store.DowngradeExpired(context.Background(), renewedID, now.Unix(), membership.TierBasic.Allotment())
	if err != nil {
		t.Fatalf("downgrade renewed: %v", err)
	}
	if downgraded {
		t.Fatalf("renewed account must not match the downgrade predicate")
	}
	got, err = store.GetAccount(context.Background(), renewedID)
	if err != nil {
		t.Fatalf("get renewed: %v", err)
	}
	if got.Tier != membership.TierPro || got.CreditBalance != 35 {
		t.Fatalf("expected renewed account untouched, got %s/%d", got.Tier, got.CreditBalance)
	}

	downgraded, err = store.DowngradeExpired(context.Background(), lapsedID, now.Unix(), membership.TierBasic.Allotment())
	if err != nil {
		t.Fatalf("repeat downgrade: %v", err)
	}
	if downgraded {
		t.Fatalf("already-basic account must not match the downgrade predicate")
	}
}

func TestListExpiredAccountsSelectsOnlyLapsedPaidTiers(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	now := time.Now().UTC()
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	seedAgent(t, store, Agent{AgentID: "expired", Email: "e@example.com", MembershipTier: "pro", MembershipExpiresAt: &yesterday})
	seedAgent(t, store, Agent{AgentID: "active", Email: "ac@example.com", MembershipTier: "advance", MembershipExpiresAt: &tomorrow})
	seedAgent(t, store, Agent{AgentID: "free", Email: "f@example.com", MembershipTier: "basic"})

	expired, err := store.ListExpiredAccounts(context.Background(), now.Unix())
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(expired) != 1 || expired[0].AccountID != "expired" {
		t.Fatalf("expected only the lapsed pro account, got %+v", expired)
	}
}

func TestCreateTransactionDuplicateReference(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	agentID := seedAgent(t, store, Agent{AgentID: "a3", Email: "a3@example.com"})

	transaction := membership.Transaction{
		AccountID:        agentID,
		AmountCents:      4999,
		Currency:         "usd",
		Status:           membership.TransactionStatusSucceeded,
		PaymentReference: "pay_abc",
		CreatedUnixUTC:   time.Now().Unix(),
	}
	if err := store.CreateTransaction(context.Background(), transaction); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := store.CreateTransaction(context.Background(), transaction)
	if !errors.Is(err, membership.ErrDuplicateTransaction) {
		t.Fatalf("expected ErrDuplicateTransaction, got %v", err)
	}
}

func TestPropertyCRUDAndBookmarks(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	agentID := seedAgent(t, store, Agent{AgentID: "a4", Email: "a4@example.com"})
	now := time.Now().Unix()

	created, err := store.CreateProperty(context.Background(), listing.Property{
		AgentID:        agentID,
		Title:          "Corner duplex",
		PriceCents:     42_000_000,
		Currency:       "usd",
		City:           "Austin",
		Status:         listing.PropertyStatusPublished,
		AmenitiesJSON:  `["garage"]`,
		CreatedUnixUTC: now,
		UpdatedUnixUTC: now,
	})
	if err != nil {
		t.Fatalf("create property: %v", err)
	}
	if created.PropertyID == "" {
		t.Fatalf("expected generated property id")
	}

	listed, err := store.ListProperties(context.Background(), listing.PropertyFilter{City: "Austin", Limit: 10})
	if err != nil {
		t.Fatalf("list properties: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected one listing, got %d", len(listed))
	}

	if err := store.SaveProperty(context.Background(), "user-1", created.PropertyID, now); err != nil {
		t.Fatalf("save property: %v", err)
	}
	if err := store.SaveProperty(context.Background(), "user-1", created.PropertyID, now); err != nil {
		t.Fatalf("repeated save should be a no-op: %v", err)
	}
	saved, err := store.ListSavedProperties(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list saved: %v", err)
	}
	if len(saved) != 1 {
		t.Fatalf("expected one bookmark, got %d", len(saved))
	}

	if err := store.DeleteProperty(context.Background(), created.PropertyID); err != nil {
		t.Fatalf("delete property: %v", err)
	}
	saved, err = store.ListSavedProperties(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list saved after delete: %v", err)
	}
	if len(saved) != 0 {
		t.Fatalf("expected bookmarks removed with the listing, got %d", len(saved))
	}
	if _, err := store.GetProperty(context.Background(), created.PropertyID); !errors.Is(err, listing.ErrPropertyNotFound) {
		t.Fatalf("expected ErrPropertyNotFound, got %v", err)
	}
}
