package rules

// Severity ranks a feedback item.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// IsValid reports whether s is a recognised severity.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityWarning, SeverityInfo:
		return true
	}
	return false
}

// Feedback is one diagnostic emitted by the rule engine. Items keep their
// emission order.
type Feedback struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Count returns how many items in fb carry severity s.
func Count(fb []Feedback, s Severity) int {
	n := 0
	for _, f := range fb {
		if f.Severity == s {
			n++
		}
	}
	return n
}
