package detector

import "fmt"

// Signal is the per-reading classification. The integer values are the wire
// and storage codes.
type Signal int

const (
	SignalNone Signal = 0
	SignalStep Signal = 1
	SignalJump Signal = 2
)

func (s Signal) String() string {
	switch s {
	case SignalNone:
		return "none"
	case SignalStep:
		return "step"
	case SignalJump:
		return "jump"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}

// Fired reports whether s is a step or a jump.
func (s Signal) Fired() bool {
	return s == SignalStep || s == SignalJump
}
