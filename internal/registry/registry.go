// Package registry provides access to the electoral roll: credential lookup,
// the one-time code slot and the single-writer ballot flag.
package registry

import (
	"context"
	"errors"
	"time"

	"github.com/charlesng35/votegate/internal/models"
)

var (
	// ErrNotFound is returned when no registrant matches the lookup.
	ErrNotFound = errors.New("registry: registrant not found")
	// ErrPhotoNotFound is returned when a registrant has no enrollment photo.
	ErrPhotoNotFound = errors.New("registry: enrollment photo not found")
)

// CommitResult reports the outcome of CompareAndSetVoted. AlreadySet is true
// when the flag was set before this call; Record is the stored state after it.
type CommitResult struct {
	AlreadySet bool
	Record     *models.Registrant
}

// Accessor is the storage contract the gates depend on. Implementations
// return copies, so callers may mutate returned records freely.
type Accessor interface {
	// FindByCredentials matches all three identifiers exactly. The voter id
	// comparison is case-insensitive.
	FindByCredentials(ctx context.Context, voterID, nationalID, phone string) (*models.Registrant, error)
	FindByID(ctx context.Context, id string) (*models.Registrant, error)
	// CompareAndSetVoted sets the ballot flag only if it is currently unset
	// and clears any one-time code in the same write.
	CompareAndSetVoted(ctx context.Context, id string, at time.Time) (*CommitResult, error)
	// SetOTP overwrites the code slot.
	SetOTP(ctx context.Context, id, codeHash string, expiresAt time.Time) error
	// ClearOTP empties the code slot if it still holds codeHash and reports
	// whether it did.
	ClearOTP(ctx context.Context, id, codeHash string) (bool, error)
}

// PhotoStore persists enrollment reference photos.
type PhotoStore interface {
	SavePhoto(ctx context.Context, photo *models.EnrollmentPhoto) (*models.EnrollmentPhoto, error)
	LoadPhoto(ctx context.Context, registrantID string) (*models.EnrollmentPhoto, error)
}

func cloneRegistrant(r *models.Registrant) *models.Registrant {
	if r == nil {
		return nil
	}
	cpy := *r
	if r.VotedAt != nil {
		t := *r.VotedAt
		cpy.VotedAt = &t
	}
	if r.PhotoID != nil {
		id := *r.PhotoID
		cpy.PhotoID = &id
	}
	if r.OTPCodeHash != nil {
		h := *r.OTPCodeHash
		cpy.OTPCodeHash = &h
	}
	if r.OTPExpiresAt != nil {
		t := *r.OTPExpiresAt
		cpy.OTPExpiresAt = &t
	}
	return &cpy
}
