package repository

import (
	"context"

	"claim-oracle/internal/models"

	"gorm.io/gorm"
)

// IssuanceRepository defines the interface for issuance audit records
type IssuanceRepository interface {
	Create(ctx context.Context, issuance *models.Issuance) error
	// ListRecent newest first; an empty address lists every claimant
	ListRecent(ctx context.Context, address string, limit int) ([]models.Issuance, error)
	CountByAddress(ctx context.Context, address string) (int64, error)
}

// issuanceRepository implements IssuanceRepository
type issuanceRepository struct {
	db *gorm.DB
}

// NewIssuanceRepository creates a new IssuanceRepository instance
func NewIssuanceRepository(db *gorm.DB) IssuanceRepository {
	return &issuanceRepository{db: db}
}

// Create inserts one issuance record
func (r *issuanceRepository) Create(ctx context.Context, issuance *models.Issuance) error {
	return r.db.WithContext(ctx).Create(issuance).Error
}

// ListRecent returns the most recent issuance records
func (r *issuanceRepository) ListRecent(ctx context.Context, address string, limit int) ([]models.Issuance, error) {
	var issuances []models.Issuance
	query := r.db.WithContext(ctx).Model(&models.Issuance{})
	if address != "" {
		query = query.Where("address = ?", address)
	}
	err := query.Order("created_at DESC").Limit(limit).Find(&issuances).Error
	if err != nil {
		return nil, err
	}
	return issuances, nil
}

// CountByAddress number of signatures issued to address
func (r *issuanceRepository) CountByAddress(ctx context.Context, address string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Issuance{}).Where("address = ?", address).Count(&count).Error
	return count, err
}

// IssuanceRecorder adapts an IssuanceRepository to the authorization service hook
type IssuanceRecorder struct {
	repo IssuanceRepository
}

// NewIssuanceRecorder creates a new IssuanceRecorder
func NewIssuanceRecorder(repo IssuanceRepository) *IssuanceRecorder {
	return &IssuanceRecorder{repo: repo}
}

// RecordIssuance persists one issued signature
func (r *IssuanceRecorder) RecordIssuance(ctx context.Context, issuance *models.Issuance) error {
	return r.repo.Create(ctx, issuance)
}

// ListRecent see IssuanceRepository.ListRecent
func (r *IssuanceRecorder) ListRecent(ctx context.Context, address string, limit int) ([]models.Issuance, error) {
	return r.repo.ListRecent(ctx, address, limit)
}
