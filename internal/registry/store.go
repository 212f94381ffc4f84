package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/votegate/internal/database"
	"github.com/charlesng35/votegate/internal/models"
)

// Store implements Accessor and PhotoStore on top of gorm.
type Store struct {
	db *gorm.DB
}

// NewStore constructs a Store using the provided database handle.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("registry: db is required")
	}
	return &Store{db: db}, nil
}

func (s *Store) FindByCredentials(ctx context.Context, voterID, nationalID, phone string) (*models.Registrant, error) {
	var record models.Registrant
	err := s.db.WithContext(ctx).
		Where("voter_id = ? AND national_id = ? AND phone_number = ?",
			strings.ToUpper(strings.TrimSpace(voterID)),
			strings.TrimSpace(nationalID),
			strings.TrimSpace(phone),
		).
		Take(&record).Error
	if err != nil {
		return nil, translate(err, "find by credentials")
	}
	return &record, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*models.Registrant, error) {
	var record models.Registrant
	if err := s.db.WithContext(ctx).Take(&record, "id = ?", id).Error; err != nil {
		return nil, translate(err, "find by id")
	}
	return &record, nil
}

func (s *Store) CompareAndSetVoted(ctx context.Context, id string, at time.Time) (*CommitResult, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Registrant{}).
		Where("id = ? AND has_voted = ?", id, false).
		Updates(map[string]any{
			"has_voted":      true,
			"voted_at":       at,
			"otp_code_hash":  nil,
			"otp_expires_at": nil,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("registry: compare and set voted: %w", res.Error)
	}

	record, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &CommitResult{AlreadySet: res.RowsAffected == 0, Record: record}, nil
}

func (s *Store) SetOTP(ctx context.Context, id, codeHash string, expiresAt time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&models.Registrant{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"otp_code_hash":  codeHash,
			"otp_expires_at": expiresAt,
		})
	if res.Error != nil {
		return fmt.Errorf("registry: set otp: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ClearOTP(ctx context.Context, id, codeHash string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Registrant{}).
		Where("id = ? AND otp_code_hash = ?", id, codeHash).
		Updates(map[string]any{
			"otp_code_hash":  nil,
			"otp_expires_at": nil,
		})
	if res.Error != nil {
		return false, fmt.Errorf("registry: clear otp: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// SweepExpiredOTP empties every code slot that expired before cutoff.
func (s *Store) SweepExpiredOTP(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Registrant{}).
		Where("otp_expires_at IS NOT NULL AND otp_expires_at < ?", cutoff).
		Updates(map[string]any{
			"otp_code_hash":  nil,
			"otp_expires_at": nil,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("registry: sweep expired otp: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// SavePhoto upserts the registrant's reference photo and links it to the
// registrant record. A concurrent first upload that loses the insert race is
// retried once as an update.
func (s *Store) SavePhoto(ctx context.Context, photo *models.EnrollmentPhoto) (*models.EnrollmentPhoto, error) {
	if photo == nil || len(photo.Data) == 0 {
		return nil, errors.New("registry: photo data is required")
	}

	sum := sha256.Sum256(photo.Data)
	photo.SHA256 = hex.EncodeToString(sum[:])
	photo.SizeBytes = len(photo.Data)

	err := s.upsertPhoto(ctx, photo)
	if database.IsUniqueConstraintError(err) {
		photo.ID = ""
		err = s.upsertPhoto(ctx, photo)
	}
	if err != nil {
		return nil, err
	}
	return photo, nil
}

func (s *Store) upsertPhoto(ctx context.Context, photo *models.EnrollmentPhoto) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var registrant models.Registrant
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&registrant, "id = ?", photo.RegistrantID).Error; err != nil {
			return translate(err, "load registrant for photo")
		}

		var existing models.EnrollmentPhoto
		err := tx.Take(&existing, "registrant_id = ?", photo.RegistrantID).Error
		switch {
		case err == nil:
			photo.ID = existing.ID
			if err := tx.Model(&existing).Updates(map[string]any{
				"content_type": photo.ContentType,
				"size_bytes":   photo.SizeBytes,
				"width":        photo.Width,
				"height":       photo.Height,
				"sha256":       photo.SHA256,
				"data":         photo.Data,
			}).Error; err != nil {
				return fmt.Errorf("registry: update photo: %w", err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(photo).Error; err != nil {
				return fmt.Errorf("registry: create photo: %w", err)
			}
		default:
			return fmt.Errorf("registry: load photo: %w", err)
		}

		return tx.Model(&models.Registrant{}).
			Where("id = ?", photo.RegistrantID).
			Update("photo_id", photo.ID).Error
	})
}

func (s *Store) LoadPhoto(ctx context.Context, registrantID string) (*models.EnrollmentPhoto, error) {
	var photo models.EnrollmentPhoto
	err := s.db.WithContext(ctx).Take(&photo, "registrant_id = ?", registrantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPhotoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("registry: load photo: %w", err)
	}
	return &photo, nil
}

func translate(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("registry: %s: %w", op, err)
}

var (
	_ Accessor   = (*Store)(nil)
	_ PhotoStore = (*Store)(nil)
)
