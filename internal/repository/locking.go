package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// mutateLocked loads rows by id under a row lock, applies fn to each and saves
// only those fn reports as changed. Missing ids are skipped.
func mutateLocked[T any](ctx context.Context, db *gorm.DB, ids []uint, fn func(*T) bool) ([]T, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	changed := make([]T, 0, len(ids))
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []T
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ?", ids).
			Order("id ASC").
			Find(&rows).Error; err != nil {
			return err
		}

		for i := range rows {
			if !fn(&rows[i]) {
				continue
			}
			if err := tx.Omit(clause.Associations).Save(&rows[i]).Error; err != nil {
				return err
			}
			changed = append(changed, rows[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return changed, nil
}
