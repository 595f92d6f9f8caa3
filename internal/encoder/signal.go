package encoder

// SignalKind classifies a signal delivered on a Handle.
type SignalKind int

const (
	SignalProgress SignalKind = iota
	SignalCompleted
	SignalFailed
	SignalCancelled
)

func (k SignalKind) String() string {
	switch k {
	case SignalProgress:
		return "progress"
	case SignalCompleted:
		return "completed"
	case SignalFailed:
		return "failed"
	case SignalCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the kind ends the run.
func (k SignalKind) Terminal() bool {
	return k != SignalProgress
}

// Signal is one observation from a running encoder process.
type Signal struct {
	Kind    SignalKind
	Percent int
	Message string
}
