package membership

import "context"

// Sweep downgrades every account whose paid membership period has elapsed,
// resetting the balance to the basic allotment. Each downgrade is a single
// conditional update that re-checks tier and expiry against the live row, so
// a settlement that lands after the scan keeps its renewed state. A failure
// is logged and counted but never aborts the remainder of the batch. No
// cross-account ordering is guaranteed.
func (service *Service) Sweep(ctx context.Context) (SweepReport, error) {
	nowUnixUTC := service.nowFn()
	expired, err := service.store.ListExpiredAccounts(ctx, nowUnixUTC)
	if err != nil {
		service.logOperation(ctx, OperationLog{Operation: operationSweep, Error: err})
		return SweepReport{}, err
	}
	report := SweepReport{Scanned: len(expired)}
	for _, account := range expired {
		downgraded, sweepError := service.store.DowngradeExpired(ctx, account.AccountID, nowUnixUTC, TierBasic.Allotment())
		if sweepError != nil {
			report.Failed++
			service.logOperation(ctx, OperationLog{
				Operation: operationSweep,
				AccountID: account.AccountID,
				Tier:      account.Tier,
				Error:     sweepError,
			})
			continue
		}
		if downgraded {
			report.Downgraded++
		}
	}
	service.logOperation(ctx, OperationLog{Operation: operationSweep})
	return report, nil
}
