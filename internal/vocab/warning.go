package vocab

// WarningKind classifies a non-fatal vocabulary problem.
type WarningKind string

const (
	WarningUnknownKey WarningKind = "unknown_key"
	WarningEmptyValue WarningKind = "empty_value"
	WarningCollision  WarningKind = "collision"
)

// Warning is a non-fatal problem found while resolving overrides.
type Warning struct {
	Kind    WarningKind
	Key     string
	Message string
}

func (w Warning) String() string {
	return "vocab: " + w.Message
}
