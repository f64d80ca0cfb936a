package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/masjid/backend/internal/domain/billing"
	"github.com/masjid/backend/internal/domain/shared"
	"github.com/masjid/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormMemberRepository implements MemberRepository using GORM
type GormMemberRepository struct {
	db *gorm.DB
}

// NewGormMemberRepository creates a new GormMemberRepository
func NewGormMemberRepository(db *gorm.DB) *GormMemberRepository {
	return &GormMemberRepository{db: db}
}

// FindByID finds a member by its ID
func (r *GormMemberRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Member, error) {
	var model models.MemberModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActive finds all active members ordered by name
func (r *GormMemberRepository) FindActive(ctx context.Context) ([]billing.Member, error) {
	var memberModels []models.MemberModel
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("name ASC").
		Find(&memberModels).Error; err != nil {
		return nil, err
	}
	members := make([]billing.Member, len(memberModels))
	for i, model := range memberModels {
		members[i] = *model.ToDomain()
	}
	return members, nil
}

// FindAll returns the member directory with pagination, sorting and an
// optional name search
func (r *GormMemberRepository) FindAll(ctx context.Context, filter shared.Filter) ([]billing.Member, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.MemberModel{})
	if filter.Search != "" {
		query = query.Where("name LIKE ?", "%"+filter.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderBy := ValidateSortField(filter.OrderBy, MemberSortFields, "name")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(orderBy + " " + orderDir)
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var memberModels []models.MemberModel
	if err := query.Find(&memberModels).Error; err != nil {
		return nil, 0, err
	}
	members := make([]billing.Member, len(memberModels))
	for i, model := range memberModels {
		members[i] = *model.ToDomain()
	}
	return members, total, nil
}

// FindByIDs finds members by a set of IDs
func (r *GormMemberRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]billing.Member, error) {
	if len(ids) == 0 {
		return []billing.Member{}, nil
	}
	var memberModels []models.MemberModel
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&memberModels).Error; err != nil {
		return nil, err
	}
	members := make([]billing.Member, len(memberModels))
	for i, model := range memberModels {
		members[i] = *model.ToDomain()
	}
	return members, nil
}

// Ensure GormMemberRepository implements MemberRepository
var _ billing.MemberRepository = (*GormMemberRepository)(nil)
