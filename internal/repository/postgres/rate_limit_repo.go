package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/helixbytes/contact-api/internal/domain/entity"
)

// RateLimitRepo реализует repository.RateLimitRepository поверх PostgreSQL.
// Счетчик fixed-window: сбрасывается целиком по истечении окна.
type RateLimitRepo struct {
	db *gorm.DB
}

// NewRateLimitRepo создает новый репозиторий счетчиков rate limit
func NewRateLimitRepo(db *gorm.DB) *RateLimitRepo {
	return &RateLimitRepo{db: db}
}

// CheckAndConsume атомарно потребляет один слот для identity. Вся проверка
// read-modify-write выполняется в одной транзакции с блокировкой строки
// (SELECT ... FOR UPDATE), чтобы два конкурентных запроса не проскочили
// лимит одновременно.
func (r *RateLimitRepo) CheckAndConsume(ctx context.Context, identityHash string, max int, window time.Duration) (bool, error) {
	allowed := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		var counter entity.RateLimitCounter
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("identity_hash = ?", identityHash).
			First(&counter).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Первый запрос от этой identity. Upsert вместо INSERT: два
			// конкурентных первых запроса не видят строки (нечего лочить),
			// проигравший вместо ошибки по primary key инкрементирует счетчик
			allowed = true
			return tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "identity_hash"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"count": gorm.Expr("rate_limit_counters.count + 1"),
				}),
			}).Create(&entity.RateLimitCounter{
				IdentityHash: identityHash,
				Count:        1,
				WindowStart:  now,
			}).Error
		}
		if err != nil {
			return err
		}

		if counter.IsWindowExpired(now, window) {
			// Окно истекло — сбрасываем счетчик
			allowed = true
			return tx.Model(&entity.RateLimitCounter{}).
				Where("identity_hash = ?", identityHash).
				Updates(map[string]interface{}{
					"count":        1,
					"window_start": now,
				}).Error
		}

		if counter.Count >= max {
			// Лимит исчерпан, состояние не меняем
			allowed = false
			return nil
		}

		allowed = true
		return tx.Model(&entity.RateLimitCounter{}).
			Where("identity_hash = ?", identityHash).
			Update("count", gorm.Expr("count + 1")).Error
	})
	if err != nil {
		log.Printf("[RateLimitRepo] Ошибка транзакции для identity=%s: %v", identityHash, err)
		return false, fmt.Errorf("rate limit transaction failed: %w", err)
	}

	return allowed, nil
}

// DeleteExpiredBefore удаляет счетчики с window_start старше cutoff
// ограниченными партиями.
func (r *RateLimitRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	var total int64
	for {
		batch := r.db.WithContext(ctx).
			Model(&entity.RateLimitCounter{}).
			Select("identity_hash").
			Where("window_start < ?", cutoff).
			Limit(batchSize)

		result := r.db.WithContext(ctx).
			Where("identity_hash IN (?)", batch).
			Delete(&entity.RateLimitCounter{})
		if result.Error != nil {
			log.Printf("[RateLimitRepo] Ошибка при очистке счетчиков: %v", result.Error)
			return total, fmt.Errorf("failed to delete expired counters: %w", result.Error)
		}

		total += result.RowsAffected
		if result.RowsAffected < int64(batchSize) {
			return total, nil
		}
	}
}
