package model

// CheckOutcome is the result of a single relationship check.
type CheckOutcome int

const (
	// OutcomeVerified means the relationship was proven to hold.
	OutcomeVerified CheckOutcome = iota
	// OutcomeDeferred means one of the classes is not loaded yet and the
	// relationship was recorded for later validation.
	OutcomeDeferred
	// OutcomeFailed means the relationship was proven not to hold.
	OutcomeFailed
)

// String returns the string representation of CheckOutcome.
func (o CheckOutcome) String() string {
	switch o {
	case OutcomeVerified:
		return "verified"
	case OutcomeDeferred:
		return "deferred"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// VerificationReport summarizes one class's verification pass, as emitted by
// the CLI.
type VerificationReport struct {
	ClassName      string   `json:"class_name"`
	Loader         string   `json:"loader"`
	SnippetCount   int      `json:"snippet_count"`
	UsedCachedData bool     `json:"used_cached_data"`
	StoredToCache  bool     `json:"stored_to_cache"`
	Status         string   `json:"status"`
	FailedClass    string   `json:"failed_class,omitempty"`
	DeferredChecks []string `json:"deferred_checks,omitempty"`
}
