package models

// NeverObserved is the loss sequence reported for a group that never matched a draw
const NeverObserved = 999

// LossSequence reports how many draws happened since a group last matched
type LossSequence struct {
	Hour         string `json:"hour"`
	Place        int    `json:"place"`
	Group        string `json:"group"`
	LossSequence int    `json:"loss_sequence"`
	Observed     bool   `json:"observed"`
}
