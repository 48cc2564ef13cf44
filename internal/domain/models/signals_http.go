package models

// HistoryRequest binds GET /api/early-pump/history.
type HistoryRequest struct {
	Coin  string `query:"coin" json:"coin" validate:"omitempty,alphanum,max=32"`
	Limit int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
	Since string `query:"since" json:"since" validate:"omitempty,timestamp"`
}
