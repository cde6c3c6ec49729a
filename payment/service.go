package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrBadStatus signals a confirm/fail attempt on a payment that is not
// pending.
var ErrBadStatus = errors.New("payment: only pending payments can change status")

// Store abstracts repository operations for the service.
type Store interface {
	Insert(ctx context.Context, rec Record) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	GetByTxHash(ctx context.Context, txHash string) (Record, error)
	List(ctx context.Context, filters Filters) ([]Record, error)
	SetStatus(ctx context.Context, id string, status Status, confirmedAt *time.Time) (Record, error)
}

// Service handles payment-record business logic.
type Service struct {
	repo  Store
	idGen func() string
	now   func() time.Time
}

func NewService(repo Store) *Service {
	return &Service{
		repo:  repo,
		idGen: func() string { return uuid.NewString() },
		now:   time.Now,
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

// CreateParams carries a new payment record tied to a settled Stellar
// transfer.
type CreateParams struct {
	SplitID       string
	ParticipantID string
	FromAddress   string
	ToAddress     string
	Amount        float64
	Asset         Asset
	StellarTxHash string
	Memo          *string
}

// Create records a payment. The Stellar transaction hash is unique; a
// duplicate fails with ErrDuplicateTxHash.
func (s *Service) Create(ctx context.Context, params CreateParams) (Record, error) {
	if params.SplitID == "" || params.ParticipantID == "" {
		return Record{}, fmt.Errorf("payment: split and participant ids required")
	}
	if params.FromAddress == "" || params.ToAddress == "" {
		return Record{}, fmt.Errorf("payment: from and to addresses required")
	}
	if params.Amount <= 0 {
		return Record{}, fmt.Errorf("payment: invalid amount")
	}
	if params.StellarTxHash == "" {
		return Record{}, fmt.Errorf("payment: transaction hash required")
	}
	asset := params.Asset
	if asset == "" {
		asset = AssetXLM
	}
	if asset != AssetXLM && asset != AssetUSDC {
		return Record{}, fmt.Errorf("payment: unsupported asset %q", asset)
	}

	return s.repo.Insert(ctx, Record{
		ID:            s.idGen(),
		SplitID:       params.SplitID,
		ParticipantID: params.ParticipantID,
		FromAddress:   params.FromAddress,
		ToAddress:     params.ToAddress,
		Amount:        params.Amount,
		Asset:         asset,
		StellarTxHash: params.StellarTxHash,
		Status:        StatusPending,
		Memo:          params.Memo,
	})
}

func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetByTxHash(ctx context.Context, txHash string) (Record, error) {
	return s.repo.GetByTxHash(ctx, txHash)
}

func (s *Service) List(ctx context.Context, filters Filters) ([]Record, error) {
	return s.repo.List(ctx, filters)
}

// Confirm marks a pending payment as settled on-chain.
func (s *Service) Confirm(ctx context.Context, id string) (Record, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if rec.Status != StatusPending {
		return Record{}, ErrBadStatus
	}
	confirmedAt := s.now()
	return s.repo.SetStatus(ctx, id, StatusConfirmed, &confirmedAt)
}

// MarkFailed records that the on-chain transfer did not settle.
func (s *Service) MarkFailed(ctx context.Context, id string) (Record, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if rec.Status != StatusPending {
		return Record{}, ErrBadStatus
	}
	return s.repo.SetStatus(ctx, id, StatusFailed, nil)
}
