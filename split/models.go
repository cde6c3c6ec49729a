package split

import "time"

// Summary mirrors the splits table columns the dispute workflow touches.
type Summary struct {
	ID          string
	Title       string
	TotalAmount float64
	Frozen      bool
	// FrozenBy holds the id of the dispute that currently locks the split,
	// nil when the split is not frozen.
	FrozenBy  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Participant is one member of a split, identified by wallet address.
type Participant struct {
	ID            string
	SplitID       string
	WalletAddress string
	Amount        float64
	CreatedAt     time.Time
}
