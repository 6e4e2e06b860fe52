package types

type StatusResponse struct {
	BadgeID    string `json:"badge_id"`
	State      string `json:"state"`
	Holder     string `json:"holder,omitempty"`
	AsOf       string `json:"as_of"`
	Pending    bool   `json:"pending,omitempty"`
	ServerTime string `json:"server_time"`
}

type RecordJSON struct {
	Date       string `json:"date"`
	Time       string `json:"time"`
	BadgeID    string `json:"badge_id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	PersonalID string `json:"personal_id"`
	Action     string `json:"action"`
}

type RecordsResponse struct {
	Records    []RecordJSON `json:"records"`
	ServerTime string       `json:"server_time"`
}
