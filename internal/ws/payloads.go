package ws

// server → client
type PointsPayload struct {
	Rule    string `json:"rule"`
	Awarded int64  `json:"awarded"`
	Total   int64  `json:"total"`
}

type PassPayload struct {
	TxHash string `json:"tx_hash"`
	PassID int    `json:"pass_id"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
