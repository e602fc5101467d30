package domain

import "time"

// Snapshot is the output of one optimization cycle.
type Snapshot struct {
	ID      string    `json:"id"`
	TakenAt time.Time `json:"taken_at"`

	Rates         []Rate        `json:"rates"`
	Opportunities []Opportunity `json:"opportunities"`
	Best          *Opportunity  `json:"best,omitempty"`
	Strategy      *LoopStrategy `json:"strategy,omitempty"`

	// ChainSpreads holds max supply minus min borrow per chain.
	ChainSpreads map[Chain]float64 `json:"chain_spreads,omitempty"`

	// Errors holds per-source failures for the cycle.
	Errors map[string]string `json:"errors,omitempty"`
}

// Empty reports whether the snapshot holds no rates.
func (s Snapshot) Empty() bool {
	return len(s.Rates) == 0
}

// RateFor returns the rate of the given market key.
func (s Snapshot) RateFor(key string) (Rate, bool) {
	for _, r := range s.Rates {
		if r.Market.Key == key {
			return r, true
		}
	}
	return Rate{}, false
}
