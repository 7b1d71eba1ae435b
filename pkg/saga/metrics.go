package saga

import "time"

// MetricsRecorder records engine runtime metrics. Token usage is not in
// this contract: the budget registry reports charges to its own recorder
// at the point they land.
type MetricsRecorder interface {
	RecordRun(phase string)
	RecordRunDuration(phase string, duration time.Duration)
	IncActiveRuns()
	DecActiveRuns()
	RecordStageAttempt(stage, outcome string)
	RecordStageDuration(stage string, duration time.Duration)
	RecordCompensation()
	RecordSubstitution()
	RecordReceipt(replayed bool)
}

type nopMetricsRecorder struct{}

func (nopMetricsRecorder) RecordRun(string)                          {}
func (nopMetricsRecorder) RecordRunDuration(string, time.Duration)   {}
func (nopMetricsRecorder) IncActiveRuns()                            {}
func (nopMetricsRecorder) DecActiveRuns()                            {}
func (nopMetricsRecorder) RecordStageAttempt(string, string)         {}
func (nopMetricsRecorder) RecordStageDuration(string, time.Duration) {}
func (nopMetricsRecorder) RecordCompensation()                       {}
func (nopMetricsRecorder) RecordSubstitution()                       {}
func (nopMetricsRecorder) RecordReceipt(bool)                        {}
