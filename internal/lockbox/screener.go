package lockbox

// ScreenResult is the outcome of screening an upload.
type ScreenResult struct {
	// Name is the sanitized filename. It is the name the file is stored under.
	Name string
	// Allowed is false when the upload must be rejected.
	Allowed bool
	// Reason is a short, user-facing explanation for a rejection.
	Reason string
	// Detail is the audit log text describing the decision.
	Detail string
}

// Screener decides whether an upload may be persisted. It has no side
// effects; the caller records the outcome.
type Screener interface {
	Screen(filename string, content []byte) ScreenResult
}
