package multipart

type State uint8

const (
	StatePreamble State = iota
	StateHeaders
	StateBody
	StateBoundarySuffix
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePreamble:
		return "preamble"
	case StateHeaders:
		return "headers"
	case StateBody:
		return "body"
	case StateBoundarySuffix:
		return "boundary suffix"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
