package dispute

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotAppealable signals an appeal attempt against a dispute that is
	// neither resolved nor rejected.
	ErrNotAppealable = errors.New("dispute: only resolved or rejected disputes can be appealed")
	// ErrAppealLimit signals the original dispute has already been appealed
	// the maximum number of times.
	ErrAppealLimit = fmt.Errorf("dispute: maximum appeal limit (%d) reached", MaxAppealCount)
)

// AppealParams carries a participant's request to re-open adjudication.
type AppealParams struct {
	AppealedBy         string
	Reason             string
	AdditionalEvidence *Evidence
}

// Appeal chains a new dispute onto a resolved or rejected one. The original
// decision stays untouched as an audit record except for its appeal counter;
// the appeal itself goes through the full review cycle independently.
//
// The appeal insert and the counter increment share one transaction with the
// original row locked, so concurrent appeals cannot overshoot the ceiling.
// Re-freezing the split and notifying participants happen after commit; a
// crash in between leaves the appeal persisted with the split not yet
// refrozen.
func (s *Service) Appeal(ctx context.Context, originalID string, params AppealParams) (Record, error) {
	if params.AppealedBy == "" {
		return Record{}, fmt.Errorf("dispute: missing appellant identity")
	}
	if params.Reason == "" {
		return Record{}, fmt.Errorf("dispute: appeal reason required")
	}

	original, err := s.repo.Get(ctx, originalID)
	if err != nil {
		return Record{}, err
	}

	if original.Status != StatusResolved && original.Status != StatusRejected {
		return Record{}, ErrNotAppealable
	}
	if original.AppealCount >= MaxAppealCount {
		return Record{}, ErrAppealLimit
	}

	participant, err := s.splits.IsParticipant(ctx, original.SplitID, params.AppealedBy)
	if err != nil {
		return Record{}, err
	}
	if !participant {
		return Record{}, ErrForbidden
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("dispute: begin appeal tx: %w", err)
	}
	defer tx.Rollback(ctx)

	locked, err := s.repo.GetForUpdate(ctx, tx, originalID)
	if err != nil {
		return Record{}, err
	}
	if locked.AppealCount >= MaxAppealCount {
		return Record{}, ErrAppealLimit
	}

	evidence := appealEvidence(locked.Evidence, params.AdditionalEvidence)

	saved, err := s.repo.Insert(ctx, tx, Record{
		ID:           s.idGen(),
		SplitID:      locked.SplitID,
		RaisedBy:     params.AppealedBy,
		Type:         locked.Type,
		Description:  locked.Description,
		Status:       StatusAppealed,
		Evidence:     evidence,
		AppealedFrom: &locked.ID,
		AppealReason: &params.Reason,
	})
	if err != nil {
		return Record{}, err
	}

	if _, err := s.repo.IncrementAppealCount(ctx, tx, locked.ID); err != nil {
		return Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("dispute: commit appeal: %w", err)
	}

	if err := s.splits.Freeze(ctx, saved.SplitID, saved.ID); err != nil {
		return Record{}, fmt.Errorf("dispute: refreeze split: %w", err)
	}

	s.notifyParticipants(ctx, saved, EventAppealed)

	return saved, nil
}

// appealEvidence overlays appeal-time evidence on the original's: any field
// supplied with the appeal replaces the original's field.
func appealEvidence(original, additional *Evidence) *Evidence {
	if original == nil && additional == nil {
		return nil
	}
	base := Evidence{}
	if original != nil {
		base = *original
	}
	if additional != nil {
		base = base.Overlay(*additional)
	}
	return &base
}
