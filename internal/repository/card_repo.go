package repository

import (
	"context"
	"errors"

	"card-ledger-backend/internal/models"
	"card-ledger-backend/internal/storage"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FindOrCreateCard creates the card row lazily on first sight of a card id.
// The unique index on card_id absorbs the race where two workers see the
// same new card at once; the loser of the insert falls through to the
// locked fetch and observes the winner's row.
func (s *LedgerStore) FindOrCreateCard(ctx context.Context, c *models.Card) (*models.Card, bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "card_id"}},
		DoNothing: true,
	}).Create(c)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return c, true, nil
	}

	existing, err := s.LockCard(ctx, c.CardID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *LedgerStore) LockCard(ctx context.Context, cardID string) (*models.Card, error) {
	var c models.Card
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("card_id = ?", cardID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *LedgerStore) SaveCard(ctx context.Context, c *models.Card) error {
	return s.db.WithContext(ctx).Save(c).Error
}

func (s *LedgerStore) GetCard(ctx context.Context, cardID string) (*models.Card, error) {
	var c models.Card
	err := s.db.WithContext(ctx).Where("card_id = ?", cardID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
