package membership

const (
	operationEnsure  = "ensure"
	operationConsume = "consume"
	operationSettle  = "settle"
	operationSweep   = "sweep"

	operationStatusOK        = "ok"
	operationStatusError     = "error"
	operationStatusDuplicate = "duplicate"

	refillWindowDays = 30
	membershipMonths = 1
	secondsPerDay    = 24 * 60 * 60
	refillWindowSecs = refillWindowDays * secondsPerDay
)
