package referral

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/briefly-ai/briefly-api/internal/types"
)

// Ensure implementation satisfies the interface
var _ Service = (*ServiceImpl)(nil)

// Service defines the business logic contract for the referral program.
type Service interface {
	RecordConversion(ctx context.Context, referrerID, referredID uuid.UUID, codeUsed string) error
	GetStats(ctx context.Context, userID uuid.UUID) (*types.ReferralStats, error)
}

// ServiceImpl provides the implementation for Service.
type ServiceImpl struct {
	logger *slog.Logger
	repo   Repo
}

func NewReferralService(repo Repo, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

func (s *ServiceImpl) RecordConversion(ctx context.Context, referrerID, referredID uuid.UUID, codeUsed string) error {
	l := s.logger.With(slog.String("method", "RecordConversion"))

	if err := s.repo.RecordConversion(ctx, referrerID, referredID, codeUsed); err != nil {
		return err
	}

	l.InfoContext(ctx, "Referral conversion recorded",
		slog.String("referrerID", referrerID.String()),
		slog.String("referredID", referredID.String()))
	return nil
}

func (s *ServiceImpl) GetStats(ctx context.Context, userID uuid.UUID) (*types.ReferralStats, error) {
	stats, err := s.repo.GetStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error loading referral stats: %w", err)
	}
	return stats, nil
}
