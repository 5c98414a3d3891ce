package membership

import (
	"context"
	"fmt"
)

// Service contains the membership lifecycle logic over a Store.
type Service struct {
	store  Store
	nowFn  func() int64
	logger OperationLogger
}

// NewService wires a Service.
func NewService(store Store, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Ensure reconciles an account's tier and credit balance against elapsed
// time. An expired paid membership downgrades to basic before the allotment
// is resolved; a never-refilled balance is initialized to the allotment; a
// balance refilled 30 or more days ago is reset to the allotment. The reset
// discards unused credits, it is not a top-up.
func (service *Service) Ensure(ctx context.Context, accountID string) (Account, error) {
	var ensured Account
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		account, err := transactionStore.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		reconciled, changed := service.reconcile(account)
		if changed {
			if err := transactionStore.UpdateMembership(ctx, reconciled); err != nil {
				return err
			}
		}
		ensured = reconciled
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationEnsure,
		AccountID:     accountID,
		Tier:          ensured.Tier,
		CreditBalance: ensured.CreditBalance,
		Error:         operationError,
	})
	if operationError != nil {
		return Account{}, operationError
	}
	return ensured, nil
}

// Consume reconciles the account and spends one credit. The decrement is a
// guarded update inside the same transaction, so two concurrent consumers
// cannot both spend the last credit.
func (service *Service) Consume(ctx context.Context, accountID string) (Account, error) {
	var consumed Account
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		account, err := transactionStore.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		reconciled, changed := service.reconcile(account)
		if changed {
			if err := transactionStore.UpdateMembership(ctx, reconciled); err != nil {
				return err
			}
		}
		if reconciled.CreditBalance < 1 {
			return ErrInsufficientCredits
		}
		if err := transactionStore.DecrementCredit(ctx, accountID); err != nil {
			return err
		}
		reconciled.CreditBalance--
		consumed = reconciled
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationConsume,
		AccountID:     accountID,
		Tier:          consumed.Tier,
		CreditBalance: consumed.CreditBalance,
		Error:         operationError,
	})
	if operationError != nil {
		return Account{}, operationError
	}
	return consumed, nil
}

func (service *Service) reconcile(account Account) (Account, bool) {
	nowUnixUTC := service.nowFn()
	changed := false
	if account.Tier.Paid() && account.MembershipExpiresAtUnixUTC != 0 && account.MembershipExpiresAtUnixUTC < nowUnixUTC {
		account.Tier = TierBasic
		changed = true
	}
	allotment := account.Tier.Allotment()
	switch {
	case account.CreditsRefilledAtUnixUTC == 0:
		// First-ever check: initialize rather than refill.
		account.CreditBalance = allotment
		account.CreditsRefilledAtUnixUTC = nowUnixUTC
		changed = true
	case nowUnixUTC-account.CreditsRefilledAtUnixUTC >= refillWindowSecs:
		account.CreditBalance = allotment
		account.CreditsRefilledAtUnixUTC = nowUnixUTC
		changed = true
	}
	return account, changed
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}
