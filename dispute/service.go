package dispute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"splitchain/notify"
)

var (
	// ErrSplitNotFound signals the referenced split does not exist.
	ErrSplitNotFound = errors.New("dispute: split not found")
	// ErrForbidden signals the actor lacks the required relationship to the
	// split or dispute.
	ErrForbidden = errors.New("dispute: forbidden")
	// ErrNotResolvable signals a resolve/reject attempt outside the
	// open/under_review statuses.
	ErrNotResolvable = errors.New("dispute: only open or under-review disputes can be resolved or rejected")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// SplitGateway is the narrow surface of the split collaborator consumed by
// the dispute core. The split aggregate itself is owned externally; freezing,
// unfreezing and adjustments are black-box remote calls from this package's
// point of view.
type SplitGateway interface {
	SplitExists(ctx context.Context, splitID string) (bool, error)
	IsParticipant(ctx context.Context, splitID, identity string) (bool, error)
	Participants(ctx context.Context, splitID string) ([]string, error)
	Freeze(ctx context.Context, splitID, disputeID string) error
	Unfreeze(ctx context.Context, splitID string) error
	ApplyAdjustments(ctx context.Context, splitID string, adjustments []Adjustment) error
}

// Service enforces the dispute state machine and the side effects bound to
// each transition.
type Service struct {
	pool       TxBeginner
	repo       Repository
	splits     SplitGateway
	dispatcher *notify.Dispatcher
	log        zerolog.Logger
	idGen      func() string
	now        func() time.Time
}

func NewService(pool TxBeginner, repo Repository, splits SplitGateway, dispatcher *notify.Dispatcher, log zerolog.Logger) *Service {
	return &Service{
		pool:       pool,
		repo:       repo,
		splits:     splits,
		dispatcher: dispatcher,
		log:        log,
		idGen:      func() string { return uuid.NewString() },
		now:        time.Now,
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGen = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateParams carries a participant-initiated dispute request.
type CreateParams struct {
	SplitID     string
	RaisedBy    string
	Type        Type
	Description string
	Evidence    *Evidence
}

// Create opens a dispute on a split, freezes the split's funds under the new
// dispute's authority and notifies every participant.
func (s *Service) Create(ctx context.Context, params CreateParams) (Record, error) {
	if params.SplitID == "" {
		return Record{}, fmt.Errorf("dispute: missing split id")
	}
	if params.RaisedBy == "" {
		return Record{}, fmt.Errorf("dispute: missing raiser identity")
	}
	if !validType(params.Type) {
		return Record{}, fmt.Errorf("dispute: invalid dispute type %q", params.Type)
	}
	if params.Description == "" {
		return Record{}, fmt.Errorf("dispute: description required")
	}

	exists, err := s.splits.SplitExists(ctx, params.SplitID)
	if err != nil {
		return Record{}, err
	}
	if !exists {
		return Record{}, ErrSplitNotFound
	}

	participant, err := s.splits.IsParticipant(ctx, params.SplitID, params.RaisedBy)
	if err != nil {
		return Record{}, err
	}
	if !participant {
		return Record{}, ErrForbidden
	}

	// Early exit; the partial unique index is the real guard under
	// concurrent creates.
	hasOpen, err := s.repo.HasOpen(ctx, params.SplitID)
	if err != nil {
		return Record{}, err
	}
	if hasOpen {
		return Record{}, ErrOpenExists
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	saved, err := s.repo.Insert(ctx, tx, Record{
		ID:          s.idGen(),
		SplitID:     params.SplitID,
		RaisedBy:    params.RaisedBy,
		Type:        params.Type,
		Description: params.Description,
		Status:      StatusOpen,
		Evidence:    params.Evidence,
	})
	if err != nil {
		return Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("dispute: commit create: %w", err)
	}

	if err := s.splits.Freeze(ctx, saved.SplitID, saved.ID); err != nil {
		return Record{}, fmt.Errorf("dispute: freeze split: %w", err)
	}

	s.notifyParticipants(ctx, saved, EventCreated)

	return saved, nil
}

// Get returns a dispute by id.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of disputes matching the filters plus the unpaged total.
func (s *Service) List(ctx context.Context, filters Filters) (ListResult, error) {
	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Disputes: items, Total: total}, nil
}

// AddEvidence merges newly submitted evidence into a dispute. While the
// dispute is still open only the raiser may add evidence; once it has moved
// past open this operation does not restrict the actor.
func (s *Service) AddEvidence(ctx context.Context, id string, evidence Evidence, actor string) (Record, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}

	if rec.Status == StatusOpen && rec.RaisedBy != actor {
		return Record{}, ErrForbidden
	}

	existing := Evidence{}
	if rec.Evidence != nil {
		existing = *rec.Evidence
	}

	saved, err := s.repo.UpdateEvidence(ctx, id, existing.Merge(evidence))
	if err != nil {
		return Record{}, err
	}

	s.notifyParticipants(ctx, saved, EventEvidenceAdded)

	return saved, nil
}

// UpdateStatus performs a generic status transition, validated against the
// transition table.
func (s *Service) UpdateStatus(ctx context.Context, id string, next Status) (Record, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}

	if !CanTransition(rec.Status, next) {
		return Record{}, &TransitionError{From: rec.Status, To: next}
	}

	saved, err := s.repo.UpdateStatus(ctx, id, next)
	if err != nil {
		return Record{}, err
	}

	if next == StatusUnderReview {
		s.notifyParticipants(ctx, saved, EventUnderReview)
	}

	return saved, nil
}

// ResolveParams carries an adjudicator's decision.
type ResolveParams struct {
	Decision      string
	Reasoning     string
	Adjustments   []Adjustment
	Compensations []Compensation
	ResolvedBy    string
}

// Resolve closes a dispute with a decision, unfreezes the split and applies
// any amount adjustments. Open disputes may be resolved directly without
// passing through review; this is intentionally looser than the generic
// transition table.
func (s *Service) Resolve(ctx context.Context, id string, params ResolveParams) (Record, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}

	if rec.Status != StatusUnderReview && rec.Status != StatusOpen {
		return Record{}, ErrNotResolvable
	}

	res := Resolution{
		Decision:      params.Decision,
		Reasoning:     params.Reasoning,
		Adjustments:   params.Adjustments,
		Compensations: params.Compensations,
	}

	saved, err := s.repo.SetResolution(ctx, id, StatusResolved, res, params.ResolvedBy, s.now())
	if err != nil {
		return Record{}, err
	}

	if err := s.splits.Unfreeze(ctx, saved.SplitID); err != nil {
		return Record{}, fmt.Errorf("dispute: unfreeze split: %w", err)
	}

	if len(params.Adjustments) > 0 {
		if err := s.splits.ApplyAdjustments(ctx, saved.SplitID, params.Adjustments); err != nil {
			return Record{}, fmt.Errorf("dispute: apply adjustments: %w", err)
		}
	}

	s.notifyParticipants(ctx, saved, EventResolved)

	return saved, nil
}

// Reject closes a dispute without upholding it and unfreezes the split. No
// adjustments are applied on rejection.
func (s *Service) Reject(ctx context.Context, id, reasoning, rejectedBy string) (Record, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}

	if rec.Status != StatusUnderReview && rec.Status != StatusOpen {
		return Record{}, ErrNotResolvable
	}

	res := Resolution{
		Decision:  "rejected",
		Reasoning: reasoning,
	}

	saved, err := s.repo.SetResolution(ctx, id, StatusRejected, res, rejectedBy, s.now())
	if err != nil {
		return Record{}, err
	}

	if err := s.splits.Unfreeze(ctx, saved.SplitID); err != nil {
		return Record{}, fmt.Errorf("dispute: unfreeze split: %w", err)
	}

	s.notifyParticipants(ctx, saved, EventRejected)

	return saved, nil
}

// notifyParticipants fans out a lifecycle event to every split participant.
// Delivery is best effort: failures are logged and never fail the surrounding
// operation.
func (s *Service) notifyParticipants(ctx context.Context, rec Record, event string) {
	recipients, err := s.splits.Participants(ctx, rec.SplitID)
	if err != nil {
		s.log.Error().Err(err).
			Str("dispute_id", rec.ID).
			Str("split_id", rec.SplitID).
			Str("event", event).
			Msg("load participants for notification")
		return
	}

	s.dispatcher.Fanout(ctx, recipients, notify.Notification{
		DisputeID:   rec.ID,
		SplitID:     rec.SplitID,
		Event:       event,
		DisputeType: string(rec.Type),
		Status:      string(rec.Status),
	})
}

func validType(t Type) bool {
	switch t {
	case TypeIncorrectAmount, TypeMissingPayment, TypeWrongItems, TypeOther:
		return true
	default:
		return false
	}
}
