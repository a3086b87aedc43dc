package ws

const (
	// client - server
	MsgPing = "ping"

	// server - client
	MsgReady         = "ready"
	MsgPong          = "pong"
	MsgPointsAwarded = "points_awarded"
	MsgPassRecorded  = "pass_recorded"
	MsgError         = "error"
)

// Message is the envelope for every frame on the live feed.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}
