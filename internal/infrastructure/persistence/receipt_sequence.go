package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/masjid/backend/internal/domain/billing"
	"github.com/masjid/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormReceiptNumberGenerator mints receipt numbers from a per-year counter
// row. The counter row is locked for the duration of the surrounding
// transaction, so numbers within a year are unique and strictly increasing.
// Format: SND-<year>-<NNNNNN>.
type GormReceiptNumberGenerator struct {
	db *gorm.DB
}

// NewGormReceiptNumberGenerator creates a new GormReceiptNumberGenerator
func NewGormReceiptNumberGenerator(db *gorm.DB) *GormReceiptNumberGenerator {
	return &GormReceiptNumberGenerator{db: db}
}

// Next returns the next receipt number for the current year
func (g *GormReceiptNumberGenerator) Next(ctx context.Context) (string, error) {
	year := time.Now().Year()

	var counter models.ReceiptCounterModel
	err := g.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&counter, "year = ?", year).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		counter = models.ReceiptCounterModel{Year: year, Counter: 0}
		// Another transaction may create the row first; fall back to
		// locking the row it created.
		if err := g.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&counter).Error; err != nil {
			return "", err
		}
		if err := g.db.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&counter, "year = ?", year).Error; err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}

	counter.Counter++
	if err := g.db.WithContext(ctx).
		Model(&models.ReceiptCounterModel{}).
		Where("year = ?", year).
		Update("counter", counter.Counter).Error; err != nil {
		return "", err
	}

	return fmt.Sprintf("SND-%d-%06d", year, counter.Counter), nil
}

// Ensure GormReceiptNumberGenerator implements ReceiptNumberGenerator
var _ billing.ReceiptNumberGenerator = (*GormReceiptNumberGenerator)(nil)
