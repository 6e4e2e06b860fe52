package types

// HeartbeatRequest is what a swipe reader reports periodically.
type HeartbeatRequest struct {
	ReaderID        string `json:"reader_id"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
	UptimeSeconds   uint64 `json:"uptime_s,omitempty"`
	RSSIDbm         *int   `json:"rssi_dbm,omitempty"`
	IP              string `json:"ip,omitempty"`
	Sequence        uint64 `json:"seq,omitempty"`
	// ReadErrors counts failed card reads since the reader booted.
	ReadErrors uint64 `json:"read_errors,omitempty"`
}

// HeartbeatResponse tells the reader how the server sees it.
type HeartbeatResponse struct {
	OK       bool   `json:"ok"`
	Known    bool   `json:"known"`
	ReaderID string `json:"reader_id"`
	// Mode is the action the reader's swipes request: in, out or toggle.
	Mode string `json:"mode,omitempty"`

	// Rebooted is set when uptime went backwards since the last heartbeat.
	Rebooted bool `json:"rebooted,omitempty"`
	// MissedBeats counts sequence numbers skipped since the last heartbeat.
	MissedBeats uint64 `json:"missed_beats,omitempty"`

	// LastSwipe is the last swipe the server logged for this reader, so
	// the reader can confirm its last card was handled.
	LastSwipe *ReaderSwipe `json:"last_swipe,omitempty"`

	ServerTime string `json:"server_time"`
}

type ReaderSwipe struct {
	BadgeID string `json:"badge_id"`
	Outcome string `json:"outcome"`
	State   string `json:"state,omitempty"`
	At      string `json:"at"`
}

// ReaderHealth is one row of GET /v1/readers.
type ReaderHealth struct {
	ReaderID        string       `json:"reader_id"`
	Mode            string       `json:"mode"`
	Enabled         bool         `json:"enabled"`
	Online          bool         `json:"online"`
	LastSeen        string       `json:"last_seen,omitempty"`
	FirmwareVersion string       `json:"firmware_version,omitempty"`
	RSSIDbm         *int         `json:"rssi_dbm,omitempty"`
	ReadErrors      uint64       `json:"read_errors,omitempty"`
	LastSwipe       *ReaderSwipe `json:"last_swipe,omitempty"`
}

type ReadersResponse struct {
	Readers    []ReaderHealth `json:"readers"`
	ServerTime string         `json:"server_time"`
}
