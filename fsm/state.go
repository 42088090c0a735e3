package fsm

// State represents the handshake stage of the device under test.
type State uint32

// Handshake states.
const (
	// Idle is the initial state, waiting for a SYN.
	Idle State = iota
	// SynReceived indicates a SYN was accepted and the model waits for the ACK.
	SynReceived
	// AckReceived indicates the handshake completed. It is absorbing.
	AckReceived
)

// States lists every handshake state in declaration order.
func States() []State { return []State{Idle, SynReceived, AckReceived} }

// IsIdle returns if the state is Idle.
func (s State) IsIdle() bool { return s == Idle }

// IsSynReceived returns if the state is SynReceived.
func (s State) IsSynReceived() bool { return s == SynReceived }

// IsAckReceived returns if the state is AckReceived.
func (s State) IsAckReceived() bool { return s == AckReceived }

// String returns string representation of the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case SynReceived:
		return "SYN_RECEIVED"
	case AckReceived:
		return "ACK_RECEIVED"
	default:
		return "UNKNOWN"
	}
}

// ParseState is the inverse of State.String. It also accepts the lower-case and
// CamelCase spellings ("idle", "SynReceived").
func ParseState(name string) (State, error) {
	switch name {
	case "IDLE", "idle", "Idle":
		return Idle, nil
	case "SYN_RECEIVED", "syn_received", "SynReceived":
		return SynReceived, nil
	case "ACK_RECEIVED", "ack_received", "AckReceived":
		return AckReceived, nil
	default:
		return Idle, ErrUnknownState
	}
}

// StateChangeHandler is invoked when an accepted event moves the model to a different state.
//
// Note: the handler is invoked synchronously by the runner. Take care with long-running
// implementations.
type StateChangeHandler func(prevState State, newState State)
