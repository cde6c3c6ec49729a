package dispute

import "time"

// Status represents the lifecycle of a dispute record.
type Status string

const (
	StatusOpen        Status = "open"
	StatusUnderReview Status = "under_review"
	StatusResolved    Status = "resolved"
	StatusRejected    Status = "rejected"
	// StatusAppealed is assigned at creation time to disputes that are
	// themselves appeals; it is never reached by transitioning an existing
	// record.
	StatusAppealed Status = "appealed"
)

// Statuses lists every dispute status, in lifecycle order.
var Statuses = []Status{StatusOpen, StatusUnderReview, StatusResolved, StatusRejected, StatusAppealed}

// Type classifies what the dispute is about.
type Type string

const (
	TypeIncorrectAmount Type = "incorrect_amount"
	TypeMissingPayment  Type = "missing_payment"
	TypeWrongItems      Type = "wrong_items"
	TypeOther           Type = "other"
)

// Types lists every dispute type.
var Types = []Type{TypeIncorrectAmount, TypeMissingPayment, TypeWrongItems, TypeOther}

// MaxAppealCount caps how many times a single dispute can be appealed.
const MaxAppealCount = 2

// Notification events emitted over the dispute lifecycle.
const (
	EventCreated       = "dispute_created"
	EventEvidenceAdded = "evidence_added"
	EventUnderReview   = "under_review"
	EventResolved      = "dispute_resolved"
	EventRejected      = "dispute_rejected"
	EventAppealed      = "dispute_appealed"
)

// Record mirrors the disputes table.
type Record struct {
	ID           string
	SplitID      string
	RaisedBy     string
	Type         Type
	Description  string
	Status       Status
	Evidence     *Evidence
	Resolution   *Resolution
	ResolvedBy   *string
	ResolvedAt   *time.Time
	AppealedFrom *string
	AppealReason *string
	AppealCount  int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Evidence is the supporting material attached to a dispute. It is stored as
// a single jsonb column and only ever grows via Merge.
type Evidence struct {
	Images      []string       `json:"images,omitempty"`
	Receipts    []string       `json:"receipts,omitempty"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Merge folds newly submitted evidence into e: image and receipt lists are
// appended (existing first, duplicates kept), the description is replaced
// only when the new evidence supplies one, and metadata is left untouched.
func (e Evidence) Merge(in Evidence) Evidence {
	out := Evidence{
		Images:      append(append([]string{}, e.Images...), in.Images...),
		Receipts:    append(append([]string{}, e.Receipts...), in.Receipts...),
		Description: e.Description,
		Metadata:    e.Metadata,
	}
	if in.Description != "" {
		out.Description = in.Description
	}
	return out
}

// Overlay applies appeal-time evidence on top of e: any field the new
// evidence supplies replaces the original field wholesale.
func (e Evidence) Overlay(in Evidence) Evidence {
	out := e
	if in.Images != nil {
		out.Images = in.Images
	}
	if in.Receipts != nil {
		out.Receipts = in.Receipts
	}
	if in.Description != "" {
		out.Description = in.Description
	}
	if in.Metadata != nil {
		out.Metadata = in.Metadata
	}
	return out
}

// Adjustment rewrites one participant's share as part of a resolution.
type Adjustment struct {
	ParticipantID  string  `json:"participantId"`
	OriginalAmount float64 `json:"originalAmount"`
	NewAmount      float64 `json:"newAmount"`
}

// Compensation awards an amount to a participant as part of a resolution.
type Compensation struct {
	ParticipantID string  `json:"participantId"`
	Amount        float64 `json:"amount"`
	Reason        string  `json:"reason"`
}

// Resolution is the decision record attached exactly once, at resolve or
// reject time.
type Resolution struct {
	Decision      string         `json:"decision"`
	Reasoning     string         `json:"reasoning"`
	Adjustments   []Adjustment   `json:"adjustments,omitempty"`
	Compensations []Compensation `json:"compensations,omitempty"`
}

// Filters narrows List results. Zero values mean "no filter".
type Filters struct {
	SplitID  string
	Status   Status
	RaisedBy string
	Type     Type
	Page     int
	Limit    int
}

// ListResult pairs one page of disputes with the unpaged total.
type ListResult struct {
	Disputes []Record
	Total    int
}

// Statistics aggregates a dispute population. ByStatus and ByType are
// zero-filled for every known status and type.
type Statistics struct {
	Total                 int
	ByStatus              map[Status]int
	ByType                map[Type]int
	AverageResolutionTime float64 // hours
}
