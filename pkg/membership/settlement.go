package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Settle applies a confirmed provider payment: the account moves to the paid
// plan, the paid period is extended by one month, and the plan's allotment is
// added on top of the current balance. The transaction record is written
// before the account so a replayed payment reference aborts with nothing
// mutated; the replay is reported as success.
func (service *Service) Settle(ctx context.Context, event PaymentEvent) error {
	plan, err := validatePaymentEvent(event)
	if err != nil {
		service.logOperation(ctx, OperationLog{
			Operation:        operationSettle,
			AccountID:        event.AccountID,
			PaymentReference: event.PaymentReference,
			Error:            err,
		})
		return err
	}
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		account, err := transactionStore.GetAccount(ctx, event.AccountID)
		if err != nil {
			return err
		}
		nowUnixUTC := service.nowFn()
		transaction := Transaction{
			AccountID:        account.AccountID,
			AmountCents:      event.AmountCents,
			Currency:         event.Currency,
			Status:           TransactionStatusSucceeded,
			PaymentReference: event.PaymentReference,
			MetadataJSON:     fmt.Sprintf(`{"plan":%q}`, plan),
			CreatedUnixUTC:   nowUnixUTC,
		}
		if err := transactionStore.CreateTransaction(ctx, transaction); err != nil {
			return err
		}
		return transactionStore.UpgradeMembership(ctx, account.AccountID, plan, addMonths(nowUnixUTC, membershipMonths), plan.Allotment())
	})
	if errors.Is(operationError, ErrDuplicateTransaction) {
		service.logOperation(ctx, OperationLog{
			Operation:        operationSettle,
			AccountID:        event.AccountID,
			Tier:             plan,
			PaymentReference: event.PaymentReference,
			Status:           operationStatusDuplicate,
		})
		return nil
	}
	service.logOperation(ctx, OperationLog{
		Operation:        operationSettle,
		AccountID:        event.AccountID,
		Tier:             plan,
		PaymentReference: event.PaymentReference,
		Error:            operationError,
	})
	return operationError
}

func validatePaymentEvent(event PaymentEvent) (Tier, error) {
	if event.Type != EventPaymentSucceeded {
		return "", fmt.Errorf("%w: unexpected event type %q", ErrInvalidPayload, event.Type)
	}
	if strings.TrimSpace(event.AccountID) == "" {
		return "", fmt.Errorf("%w: missing account id", ErrInvalidPayload)
	}
	if strings.TrimSpace(event.PaymentReference) == "" {
		return "", fmt.Errorf("%w: missing payment reference", ErrInvalidPayload)
	}
	plan, err := ParseTier(event.Plan)
	if err != nil {
		return "", fmt.Errorf("%w: unknown plan %q", ErrInvalidPayload, event.Plan)
	}
	if !plan.Paid() {
		return "", fmt.Errorf("%w: plan %q is not purchasable", ErrInvalidPayload, event.Plan)
	}
	return plan, nil
}

func addMonths(unixUTC int64, months int) int64 {
	return time.Unix(unixUTC, 0).UTC().AddDate(0, months, 0).Unix()
}
