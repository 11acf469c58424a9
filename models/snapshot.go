package models

// Lottery identifies the lottery an upstream draw belongs to
type Lottery struct {
	Title *string `json:"title"`
}

// RawDraw is one draw entry as published by the provider; every field may be missing
type RawDraw struct {
	Place   *string `json:"place"`
	Lottery Lottery `json:"lottery"`
	Milhar  *string `json:"thousand"`
	Hour    *string `json:"hour"`
	Group   *string `json:"group"`
	Date    *string `json:"date"`
}

// Snapshot is the payload returned by the provider's results archive
type Snapshot struct {
	DrawGroups [][]RawDraw `json:"bicho_lotteries_draws"`
	ShowMore   bool        `json:"show_more"`
	Status     string      `json:"status"`
}

// EntryCount returns the number of raw entries across all draw groups
func (s *Snapshot) EntryCount() int {
	if s == nil {
		return 0
	}
	total := 0
	for _, group := range s.DrawGroups {
		total += len(group)
	}
	return total
}
