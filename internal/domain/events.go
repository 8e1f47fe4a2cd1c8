package domain

// Message types pushed over the real-time channel
const (
	MessageSnapshot = "snapshot"
	MessageAnnounce = "announce"
	MessageHit      = "hit"
)

// Status is the connection status text shown to the operator
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected, retrying"
)

// FeedLimit is the number of hit lines kept in the event feed
const FeedLimit = 200
