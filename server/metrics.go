package server

// MetricsCollector receives counters from the Access Manager and the
// connection lifecycle. A nil collector is never passed to these call
// sites directly; NewAccessManager and Server substitute noopMetrics
// instead, matching the teacher's "if s.metricsCollector != nil" guard
// without repeating the nil check at every call site.
type MetricsCollector interface {
	// RecordConnection is called once per accepted or rejected TCP
	// connection. reason is empty when accepted.
	RecordConnection(accepted bool, reason string)

	// RecordOpen is called once per Open attempt.
	RecordOpen(allowed bool)

	// RecordClose is called once per successful Close.
	RecordClose()

	// RecordPolicyDenied is called whenever a Read or Write is refused
	// for lack of permission (Open's own denials go through RecordOpen).
	RecordPolicyDenied()

	// SetOpenFileCount reports the current number of distinct open
	// paths in the table.
	SetOpenFileCount(n int)
}

type noopMetrics struct{}

func (noopMetrics) RecordConnection(accepted bool, reason string) {}
func (noopMetrics) RecordOpen(allowed bool)                       {}
func (noopMetrics) RecordClose()                                  {}
func (noopMetrics) RecordPolicyDenied()                           {}
func (noopMetrics) SetOpenFileCount(n int)                        {}
