package conn

// Status is the connection lifecycle state. Transitions happen only inside
// the Manager.
type Status int

const (
	// StatusDisconnected means no socket is open and no dial is in flight.
	StatusDisconnected Status = iota

	// StatusConnecting means a dial is in flight or a retry just fired.
	StatusConnecting

	// StatusConnected means the stream is open and Send will deliver.
	StatusConnected
)

// String returns the string representation of a Status.
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "unknown"
	}
}
