package core

import (
	"fmt"
	"time"
)

// AnalysisKind selects what the submitted content is
type AnalysisKind string

const (
	KindURL   AnalysisKind = "URL"
	KindEmail AnalysisKind = "EMAIL"
)

// Valid reports whether k is one of the known kinds
func (k AnalysisKind) Valid() bool {
	return k == KindURL || k == KindEmail
}

// SimulationMode is the device class a URL analysis pretends to come from
type SimulationMode string

const (
	SimulationDesktop SimulationMode = "DESKTOP"
	SimulationMobile  SimulationMode = "MOBILE"
)

// Valid reports whether m is one of the known modes
func (m SimulationMode) Valid() bool {
	return m == SimulationDesktop || m == SimulationMobile
}

// URLOptions are the advanced options for URL analyses
type URLOptions struct {
	SimulationMode SimulationMode `json:"simulationMode"`
	// CountryCode is empty when absent
	CountryCode string `json:"countryCode,omitempty"`
}

// EmailOptions are the advanced options for email analyses
type EmailOptions struct {
	ExtractAllLinks bool `json:"extractAllLinks"`
}

// Options carries the option variant matching an AnalysisKind. Exactly one
// of URL and Email is set on a built descriptor.
type Options struct {
	URL   *URLOptions   `json:"url,omitempty"`
	Email *EmailOptions `json:"email,omitempty"`
}

// DefaultURLOptions mirrors the defaults of the input form
func DefaultURLOptions() URLOptions {
	return URLOptions{SimulationMode: SimulationDesktop}
}

// RequestDescriptor is a fully specified analysis request
type RequestDescriptor struct {
	Kind    AnalysisKind
	Content string
	Options Options
}

// Verdict is the coarse risk classification of one analysis
type Verdict string

const (
	VerdictSafe       Verdict = "SAFE"
	VerdictSuspicious Verdict = "SUSPICIOUS"
	VerdictDangerous  Verdict = "DANGEROUS"
)

// Valid reports whether v is one of the known verdicts
func (v Verdict) Valid() bool {
	switch v {
	case VerdictSafe, VerdictSuspicious, VerdictDangerous:
		return true
	}
	return false
}

// CheckResult is one named sub-assessment of an analysis
type CheckResult struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Score       int    `json:"score"`
}

// AnalysisResult is the validated verdict returned by the model
type AnalysisResult struct {
	Verdict      Verdict       `json:"verdict"`
	OverallScore int           `json:"overallScore"`
	Checks       []CheckResult `json:"checks"`
}

// validate checks the invariants every accepted result holds
func (r AnalysisResult) validate() error {
	if !r.Verdict.Valid() {
		return &InvalidResponseShapeError{Reason: fmt.Sprintf("unknown verdict %q", r.Verdict)}
	}
	if r.OverallScore < 0 || r.OverallScore > 100 {
		return &InvalidResponseShapeError{Reason: fmt.Sprintf("overallScore %d outside 0-100", r.OverallScore)}
	}
	if len(r.Checks) == 0 {
		return &InvalidResponseShapeError{Reason: "checks is empty"}
	}
	for i, c := range r.Checks {
		if c.Score < 0 || c.Score > 100 {
			return &InvalidResponseShapeError{Reason: fmt.Sprintf("checks[%d] score %d outside 0-100", i, c.Score)}
		}
	}
	return nil
}

// clone returns a copy that shares no slices with r
func (r AnalysisResult) clone() AnalysisResult {
	checks := make([]CheckResult, len(r.Checks))
	copy(checks, r.Checks)
	r.Checks = checks
	return r
}

// HistoryEntry is one recorded analysis
type HistoryEntry struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	Kind      AnalysisKind   `json:"kind"`
	Content   string         `json:"content"`
	Result    AnalysisResult `json:"result"`
}

// ChatRole identifies the author of a chat message
type ChatRole string

const (
	RoleUser  ChatRole = "user"
	RoleModel ChatRole = "model"
)

// ChatMessage is one turn of the assistant transcript
type ChatMessage struct {
	Role ChatRole `json:"role"`
	Text string   `json:"text"`
}

// State is what the presentation layer renders
type State struct {
	Loading bool
	Result  *AnalysisResult
	Error   string
}
