package split

import (
	"context"

	"splitchain/dispute"
)

// Store abstracts repository operations for the service.
type Store interface {
	Get(ctx context.Context, id string) (Summary, error)
	Exists(ctx context.Context, id string) (bool, error)
	IsParticipant(ctx context.Context, splitID, walletAddress string) (bool, error)
	Participants(ctx context.Context, splitID string) ([]Participant, error)
	SetFrozen(ctx context.Context, splitID, disputeID string) error
	ClearFrozen(ctx context.Context, splitID string) error
	UpdateParticipantAmounts(ctx context.Context, splitID string, adjustments []dispute.Adjustment) error
}

// Service is the production adapter behind dispute.SplitGateway.
type Service struct {
	repo Store
}

func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// Get returns the split summary for the given id.
func (s *Service) Get(ctx context.Context, id string) (Summary, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) SplitExists(ctx context.Context, splitID string) (bool, error) {
	return s.repo.Exists(ctx, splitID)
}

func (s *Service) IsParticipant(ctx context.Context, splitID, identity string) (bool, error) {
	return s.repo.IsParticipant(ctx, splitID, identity)
}

// Participants returns the wallet addresses of every split member.
func (s *Service) Participants(ctx context.Context, splitID string) ([]string, error) {
	members, err := s.repo.Participants(ctx, splitID)
	if err != nil {
		return nil, err
	}
	identities := make([]string, 0, len(members))
	for _, m := range members {
		identities = append(identities, m.WalletAddress)
	}
	return identities, nil
}

func (s *Service) Freeze(ctx context.Context, splitID, disputeID string) error {
	return s.repo.SetFrozen(ctx, splitID, disputeID)
}

func (s *Service) Unfreeze(ctx context.Context, splitID string) error {
	return s.repo.ClearFrozen(ctx, splitID)
}

func (s *Service) ApplyAdjustments(ctx context.Context, splitID string, adjustments []dispute.Adjustment) error {
	return s.repo.UpdateParticipantAmounts(ctx, splitID, adjustments)
}

var _ dispute.SplitGateway = (*Service)(nil)
