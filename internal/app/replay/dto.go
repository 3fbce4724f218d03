package replay

import "reefbase/internal/app/ports"

type Request struct {
	PlayerID     string
	Limit        int
	OccurredFrom int64
	OccurredTo   int64
}

type Response struct {
	Events []ports.BaseEvent `json:"events"`
	Latest Summary           `json:"latest"`
}

// Summary is what the returned events alone say about the base.
type Summary struct {
	Levels    map[string]int     `json:"levels"`
	Collected map[string]float64 `json:"collected"`
	Actions   int                `json:"actions"`
}
