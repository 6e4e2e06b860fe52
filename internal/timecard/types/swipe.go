package types

type SwipeRequest struct {
	ReaderID   string `json:"reader_id"`
	CardID     string `json:"card_id"`
	Action     string `json:"action,omitempty"`      // "IN" | "OUT"; empty uses the reader's mode
	DetectedAt string `json:"detected_at,omitempty"` // optional device timestamp
}

type SwipeResponse struct {
	OK         bool   `json:"ok"`
	Known      bool   `json:"known"`
	Outcome    string `json:"outcome"` // accepted | rejected | failed | suppressed | unknown_reader
	State      string `json:"state,omitempty"`
	Holder     string `json:"holder,omitempty"`
	Registered bool   `json:"registered"`
	Reason     string `json:"reason,omitempty"`
	ReaderID   string `json:"reader_id"`
	SwipeID    string `json:"swipe_id,omitempty"`
	ServerTime string `json:"server_time"`
}
