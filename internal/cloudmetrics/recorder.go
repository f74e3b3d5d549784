package cloudmetrics

import (
	"strings"
	"sync"
)

type Recorder interface {
	RecordDocumentProcessed(orgID, docType string)
	RecordInvoiceIssued(orgID string)
	RecordScreeningCompleted(orgID, verdict string)
	RecordEngineError(orgID, operation string)
	UpdateActiveOrganizations(count int64)
}

type recorder struct {
	metrics      *metrics
	defaultOrgID string
}

type noopRecorder struct{}

func (noopRecorder) RecordDocumentProcessed(string, string)  {}
func (noopRecorder) RecordInvoiceIssued(string)              {}
func (noopRecorder) RecordScreeningCompleted(string, string) {}
func (noopRecorder) RecordEngineError(string, string)        {}
func (noopRecorder) UpdateActiveOrganizations(int64)         {}

var (
	activeRecorder Recorder = noopRecorder{}
	recorderMu     sync.RWMutex
)

func setRecorder(rec Recorder) {
	if rec == nil {
		return
	}
	recorderMu.Lock()
	activeRecorder = rec
	recorderMu.Unlock()
}

func current() Recorder {
	recorderMu.RLock()
	rec := activeRecorder
	recorderMu.RUnlock()
	return rec
}

func RecordDocumentProcessed(orgID, docType string) {
	current().RecordDocumentProcessed(orgID, docType)
}

func RecordInvoiceIssued(orgID string) {
	current().RecordInvoiceIssued(orgID)
}

func RecordScreeningCompleted(orgID, verdict string) {
	current().RecordScreeningCompleted(orgID, verdict)
}

func RecordEngineError(orgID, operation string) {
	current().RecordEngineError(orgID, operation)
}

func UpdateActiveOrganizations(count int64) {
	current().UpdateActiveOrganizations(count)
}

func (r *recorder) RecordDocumentProcessed(orgID, docType string) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.documentsProcessed.WithLabelValues(r.normalizeOrg(orgID), normalizeLabel(docType)).Inc()
}

func (r *recorder) RecordInvoiceIssued(orgID string) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.invoicesIssued.WithLabelValues(r.normalizeOrg(orgID)).Inc()
}

func (r *recorder) RecordScreeningCompleted(orgID, verdict string) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.screeningsCompleted.WithLabelValues(r.normalizeOrg(orgID), normalizeLabel(verdict)).Inc()
}

func (r *recorder) RecordEngineError(orgID, operation string) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.engineErrors.WithLabelValues(r.normalizeOrg(orgID), normalizeLabel(operation)).Inc()
}

func (r *recorder) UpdateActiveOrganizations(count int64) {
	if r == nil || r.metrics == nil {
		return
	}
	if count < 0 {
		count = 0
	}
	r.metrics.activeOrganizations.Set(float64(count))
}

func (r *recorder) normalizeOrg(orgID string) string {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		orgID = strings.TrimSpace(r.defaultOrgID)
	}
	if orgID == "" {
		return "unknown"
	}
	return orgID
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
