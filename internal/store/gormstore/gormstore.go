package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/casafind/casafind/pkg/membership"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultMetadataJSON   = "{}"
	pgUniqueViolationCode = "23505"
	sqliteConstraintCode  = 19
	errorOperationStore   = "store"
	errorSubjectAccount   = "account"
	errorSubjectCredit    = "credit"
	errorSubjectTxn       = "transaction"
	errorCodeCreate       = "create"
	errorCodeDecrement    = "decrement"
	errorCodeDuplicate    = "duplicate"
	errorCodeGet          = "get"
	errorCodeInvalid      = "invalid"
	errorCodeList         = "list"
	errorCodeUpdate       = "update"
)

// Store implements membership.Store and listing.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore membership.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

// GetAccount loads the membership view of an agent.
func (store *Store) GetAccount(ctx context.Context, accountID string) (membership.Account, error) {
	var agent Agent
	err := store.db.WithContext(ctx).Where("agent_id = ?", accountID).Take(&agent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return membership.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, membership.ErrAccountNotFound)
		}
		return membership.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, err)
	}
	return mapAccount(agent)
}

// UpdateMembership persists the lifecycle columns of an agent.
func (store *Store) UpdateMembership(ctx context.Context, account membership.Account) error {
	result := store.db.WithContext(ctx).
		Model(&Agent{}).
		Where("agent_id = ?", account.AccountID).
		Updates(map[string]any{
			"membership_tier":       account.Tier.String(),
			"credit_balance":        account.CreditBalance,
			"membership_expires_at": timePtrOrNil(account.MembershipExpiresAtUnixUTC),
			"credits_refilled_at":   timePtrOrNil(account.CreditsRefilledAtUnixUTC),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdate, membership.ErrAccountNotFound)
	}
	return nil
}

// DecrementCredit spends one credit with a minimum-balance guard. The guard
// lives in the WHERE clause so concurrent spenders cannot drive the balance
// negative.
func (store *Store) DecrementCredit(ctx context.Context, accountID string) error {
	result := store.db.WithContext(ctx).
		Model(&Agent{}).
		Where("agent_id = ? AND credit_balance >= 1", accountID).
		UpdateColumn("credit_balance", gorm.Expr("credit_balance - 1"))
	if result.Error != nil {
		return wrapStoreError(errorSubjectCredit, errorCodeDecrement, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectCredit, errorCodeDecrement, membership.ErrInsufficientCredits)
	}
	return nil
}

// UpgradeMembership applies a paid settlement: tier and expiry are written
// absolutely while the credit grant is added in SQL, so a concurrent guarded
// decrement in the same window is not overwritten.
func (store *Store) UpgradeMembership(ctx context.Context, accountID string, tier membership.Tier, expiresAtUnixUTC int64, creditDelta int64) error {
	result := store.db.WithContext(ctx).
		Model(&Agent{}).
		Where("agent_id = ?", accountID).
		Updates(map[string]any{
			"membership_tier":       tier.String(),
			"membership_expires_at": timePtrOrNil(expiresAtUnixUTC),
			"credit_balance":        gorm.Expr("credit_balance + ?", creditDelta),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdate, membership.ErrAccountNotFound)
	}
	return nil
}

// DowngradeExpired moves a lapsed paid membership back to basic. The tier and
// expiry preconditions live in the WHERE clause; a false result means another
// writer renewed the account after it was scanned.
func (store *Store) DowngradeExpired(ctx context.Context, accountID string, nowUnixUTC int64, creditBalance int64) (bool, error) {
	at := time.Unix(nowUnixUTC, 0).UTC()
	result := store.db.WithContext(ctx).
		Model(&Agent{}).
		Where("agent_id = ? AND membership_tier <> ?", accountID, membership.TierBasic.String()).
		Where("membership_expires_at IS NOT NULL AND membership_expires_at < ?", at).
		Updates(map[string]any{
			"membership_tier": membership.TierBasic.String(),
			"credit_balance":  creditBalance,
		})
	if result.Error != nil {
		return false, wrapStoreError(errorSubjectAccount, errorCodeUpdate, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListExpiredAccounts returns paid memberships whose period elapsed before
// nowUnixUTC.
func (store *Store) ListExpiredAccounts(ctx context.Context, nowUnixUTC int64) ([]membership.Account, error) {
	at := time.Unix(nowUnixUTC, 0).UTC()
	var rows []Agent
	err := store.db.WithContext(ctx).
		Where("membership_tier <> ?", membership.TierBasic.String()).
		Where("membership_expires_at IS NOT NULL AND membership_expires_at < ?", at).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectAccount, errorCodeList, err)
	}
	accounts := make([]membership.Account, 0, len(rows))
	for _, row := range rows {
		account, err := mapAccount(row)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// CreateTransaction inserts an immutable settlement record. A replayed
// payment reference surfaces as ErrDuplicateTransaction.
func (store *Store) CreateTransaction(ctx context.Context, transaction membership.Transaction) error {
	row := Transaction{
		TransactionID:    transaction.TransactionID,
		AgentID:          transaction.AccountID,
		AmountCents:      transaction.AmountCents,
		Currency:         transaction.Currency,
		Status:           transaction.Status,
		PaymentReference: transaction.PaymentReference,
		Metadata:         datatypesJSON(transaction.MetadataJSON),
		CreatedAt:        time.Unix(transaction.CreatedUnixUTC, 0).UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	err := store.db.WithContext(ctx).Create(&row).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectTxn, errorCodeDuplicate, membership.ErrDuplicateTransaction)
	}
	if err != nil {
		return wrapStoreError(errorSubjectTxn, errorCodeCreate, err)
	}
	return nil
}

func mapAccount(agent Agent) (membership.Account, error) {
	tier, err := membership.ParseTier(agent.MembershipTier)
	if err != nil {
		return membership.Account{}, wrapStoreError(errorSubjectAccount, errorCodeInvalid, err)
	}
	return membership.Account{
		AccountID:                  agent.AgentID,
		Tier:                       tier,
		CreditBalance:              agent.CreditBalance,
		MembershipExpiresAtUnixUTC: unixOrZero(agent.MembershipExpiresAt),
		CreditsRefilledAtUnixUTC:   unixOrZero(agent.CreditsRefilledAt),
	}, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return membership.WrapError(errorOperationStore, subject, code, err)
}

func unixOrZero(value *time.Time) int64 {
	if value == nil {
		return 0
	}
	return value.Unix()
}

func timePtrOrNil(unixUTC int64) *time.Time {
	if unixUTC == 0 {
		return nil
	}
	value := time.Unix(unixUTC, 0).UTC()
	return &value
}

func datatypesJSON(raw string) datatypes.JSON {
	if raw == "" {
		return datatypes.JSON([]byte(defaultMetadataJSON))
	}
	return datatypes.JSON([]byte(raw))
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
