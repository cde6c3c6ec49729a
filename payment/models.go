package payment

import "time"

// Status tracks the on-chain settlement state of a payment record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Asset is the Stellar asset a payment settles in.
type Asset string

const (
	AssetXLM  Asset = "XLM"
	AssetUSDC Asset = "USDC"
)

// Record mirrors the payments table.
type Record struct {
	ID            string
	SplitID       string
	ParticipantID string
	FromAddress   string
	ToAddress     string
	Amount        float64
	Asset         Asset
	StellarTxHash string
	Status        Status
	Memo          *string
	CreatedAt     time.Time
	ConfirmedAt   *time.Time
}

// Filters narrows List results. Zero values mean "no filter".
type Filters struct {
	SplitID       string
	ParticipantID string
	Status        Status
	Asset         Asset
	StellarTxHash string
}
