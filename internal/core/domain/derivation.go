package domain

// RegenerationResult reports the outcome of one derived-rate regeneration
// pass for a single owner and effective date.
//
// Succeeded=false means the derived set may be stale or incomplete and the
// caller should retry or alert the user. Per-pair problems are collected in
// Errors and do not by themselves fail the pass.
type RegenerationResult struct {
	Succeeded       bool     `json:"succeeded"`
	DerivedCount    int      `json:"derivedCount"`
	ReverseCount    int      `json:"reverseCount"`
	TransitiveCount int      `json:"transitiveCount"`
	Errors          []string `json:"errors,omitempty"`
}
