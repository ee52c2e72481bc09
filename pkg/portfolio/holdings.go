package portfolio

import (
	"maps"
	"time"
)

// HoldingsRecord is one row of the holdings series, taken once per market event
type HoldingsRecord struct {
	Timestamp  time.Time          `json:"timestamp"`
	Cash       float64            `json:"cash"`
	Commission float64            `json:"commission"`
	Holdings   map[string]float64 `json:"holdings"`  // market value per symbol
	Positions  map[string]float64 `json:"positions"` // signed quantity per symbol
	Total      float64            `json:"total"`
}

func (r HoldingsRecord) clone() HoldingsRecord {
	r.Holdings = maps.Clone(r.Holdings)
	r.Positions = maps.Clone(r.Positions)
	return r
}
