package telemetry

import (
	"strings"
	"sync"
)

type ReportKind int

const (
	REPORT_BROKEN ReportKind = iota
	REPORT_WARNING
	REPORT_DEBUG
	REPORT_COUNT
)

type Report struct {
	Kind   ReportKind
	ID     string
	Params []any
	Count  int64
}

// Recorder is an API that keeps every report in memory so tests can assert on them.
type Recorder struct {
	mu      sync.Mutex
	reports []Report
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) add(report Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
}

func (r *Recorder) ReportBroken(id string, params ...any) {
	r.add(Report{Kind: REPORT_BROKEN, ID: id, Params: params})
}

func (r *Recorder) ReportWarning(id string, params ...any) {
	r.add(Report{Kind: REPORT_WARNING, ID: id, Params: params})
}

func (r *Recorder) ReportDebug(msg string, params ...any) {
	r.add(Report{Kind: REPORT_DEBUG, ID: msg, Params: params})
}

func (r *Recorder) ReportCount(id string, count int64) {
	r.add(Report{Kind: REPORT_COUNT, ID: id, Count: count})
}

// Reports returns a copy of every report of the given kind.
func (r *Recorder) Reports(kind ReportKind) []Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Report
	for _, report := range r.reports {
		if report.Kind == kind {
			out = append(out, report)
		}
	}
	return out
}

// Has reports whether a report of the given kind has an id containing `substr`.
func (r *Recorder) Has(kind ReportKind, substr string) bool {
	for _, report := range r.Reports(kind) {
		if strings.Contains(report.ID, substr) {
			return true
		}
	}
	return false
}
