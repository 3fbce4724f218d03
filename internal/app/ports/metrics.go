package ports

type SaveOutcome string

const (
	SaveAccepted  SaveOutcome = "accepted"
	SaveConflict  SaveOutcome = "conflict"
	SaveThrottled SaveOutcome = "throttled"
	SaveTooLarge  SaveOutcome = "too_large"
	SaveInvalid   SaveOutcome = "invalid"
)

type EconomyMetrics interface {
	RecordSave(outcome SaveOutcome)
	RecordAction(ok bool, reason string)
	RecordBuild(ok bool)
	RecordCollect()
}
