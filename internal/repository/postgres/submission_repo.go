package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/helixbytes/contact-api/internal/domain/entity"
	apperrors "github.com/helixbytes/contact-api/internal/pkg/errors"
)

// SubmissionRepo реализует repository.SubmissionRepository поверх PostgreSQL
type SubmissionRepo struct {
	db *gorm.DB
}

// NewSubmissionRepo создает новый репозиторий заявок контактной формы
func NewSubmissionRepo(db *gorm.DB) *SubmissionRepo {
	return &SubmissionRepo{db: db}
}

// Create вставляет новую запись. Только INSERT, без перезаписи существующих.
func (r *SubmissionRepo) Create(ctx context.Context, submission *entity.ContactSubmission) error {
	if err := r.db.WithContext(ctx).Create(submission).Error; err != nil {
		log.Printf("[SubmissionRepo] Ошибка при создании заявки: %v", err)
		return fmt.Errorf("failed to create contact submission: %w", err)
	}
	return nil
}

// GetByToken ищет заявку по verification-токену. Токен уникален, поэтому
// достаточно одной записи.
func (r *SubmissionRepo) GetByToken(ctx context.Context, token string) (*entity.ContactSubmission, error) {
	var submission entity.ContactSubmission
	err := r.db.WithContext(ctx).
		Where("verification_token = ?", token).
		First(&submission).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		log.Printf("[SubmissionRepo] Ошибка при поиске заявки по токену: %v", err)
		return nil, fmt.Errorf("failed to get submission by token: %w", err)
	}
	return &submission, nil
}

// MarkVerified атомарно переводит заявку в verified и удаляет оба
// token-поля. UPDATE обусловлен текущим состоянием строки: из двух
// конкурентных подтверждений одного токена выигрывает ровно одно, проигравший
// получает apperrors.ErrConflict (строка уже verified, токен уже NULL).
func (r *SubmissionRepo) MarkVerified(ctx context.Context, id string, verifiedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&entity.ContactSubmission{}).
		Where("id = ? AND email_verified = ? AND verification_token IS NOT NULL", id, false).
		Updates(map[string]interface{}{
			"email_verified":     true,
			"status":             entity.SubmissionStatusVerified,
			"verified_at":        verifiedAt,
			"verification_token": nil,
			"token_expires_at":   nil,
		})
	if result.Error != nil {
		log.Printf("[SubmissionRepo] Ошибка при подтверждении заявки ID=%s: %v", id, result.Error)
		return fmt.Errorf("failed to mark submission verified: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrConflict
	}
	return nil
}

// DeleteUnverifiedBefore удаляет неподтвержденные заявки старше cutoff
// ограниченными партиями: хранилище может ограничивать размер batch-delete,
// поэтому удаляем через подзапрос с LIMIT до исчерпания.
func (r *SubmissionRepo) DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	var total int64
	for {
		batch := r.db.WithContext(ctx).
			Model(&entity.ContactSubmission{}).
			Select("id").
			Where("email_verified = ? AND created_at < ?", false, cutoff).
			Limit(batchSize)

		result := r.db.WithContext(ctx).
			Where("id IN (?)", batch).
			Delete(&entity.ContactSubmission{})
		if result.Error != nil {
			log.Printf("[SubmissionRepo] Ошибка при очистке неподтвержденных заявок: %v", result.Error)
			return total, fmt.Errorf("failed to delete unverified submissions: %w", result.Error)
		}

		total += result.RowsAffected
		if result.RowsAffected < int64(batchSize) {
			return total, nil
		}
	}
}
