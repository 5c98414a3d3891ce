package membership

import (
	"context"
	"testing"
)

type recorderLogger struct {
	entries []OperationLog
}

func (logger *recorderLogger) LogOperation(_ context.Context, entry OperationLog) {
	logger.entries = append(logger.entries, entry)
}

func TestServiceLogsEnsureOperation(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	store.accounts["agent-1"] = Account{AccountID: "agent-1", Tier: TierBasic}
	logger := &recorderLogger{}
	service, err := NewService(store, func() int64 { return fixedNowUnixUTC }, WithOperationLogger(logger))
	if err != nil {
		test.Fatalf("service init failed: %v", err)
	}
	if _, err := service.Ensure(context.Background(), "agent-1"); err != nil {
		test.Fatalf("ensure failed: %v", err)
	}
	if len(logger.entries) != 1 {
		test.Fatalf("expected one log entry, got %d", len(logger.entries))
	}
	entry := logger.entries[0]
	if entry.Operation != operationEnsure || entry.AccountID != "agent-1" || entry.CreditBalance != 5 {
		test.Fatalf("unexpected log entry: %+v", entry)
	}
	if entry.Error != nil || entry.Status != operationStatusOK {
		test.Fatalf("expected successful log entry, got %+v", entry)
	}
}

func TestServiceLogsErrorStatus(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	logger := &recorderLogger{}
	service, err := NewService(store, func() int64 { return fixedNowUnixUTC }, WithOperationLogger(logger))
	if err != nil {
		test.Fatalf("service init failed: %v", err)
	}
	if _, err := service.Ensure(context.Background(), "missing"); err == nil {
		test.Fatalf("expected error")
	}
	if len(logger.entries) != 1 {
		test.Fatalf("expected one log entry, got %d", len(logger.entries))
	}
	if logger.entries[0].Status != operationStatusError || logger.entries[0].Error == nil {
		test.Fatalf("expected error log entry, got %+v", logger.entries[0])
	}
}

func TestServiceLogsDuplicateSettlement(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	store.accounts["agent-1"] = Account{AccountID: "agent-1", Tier: TierBasic, CreditsRefilledAtUnixUTC: fixedNowUnixUTC}
	logger := &recorderLogger{}
	service, err := NewService(store, func() int64 { return fixedNowUnixUTC }, WithOperationLogger(logger))
	if err != nil {
		test.Fatalf("service init failed: %v", err)
	}
	event := succeededEvent("pay_log")
	if err := service.Settle(context.Background(), event); err != nil {
		test.Fatalf("settle failed: %v", err)
	}
	if err := service.Settle(context.Background(), event); err != nil {
		test.Fatalf("replay failed: %v", err)
	}
	if len(logger.entries) != 2 {
		test.Fatalf("expected two log entries, got %d", len(logger.entries))
	}
	if logger.entries[1].Status != operationStatusDuplicate {
		test.Fatalf("expected duplicate status on replay, got %+v", logger.entries[1])
	}
}
