package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/charlesng35/votegate/internal/models"
)

// MemoryStore is an in-process Accessor and PhotoStore guarded by a single
// mutex. It backs the registry.driver=memory mode and tests that need real
// concurrency without a database.
type MemoryStore struct {
	mu          sync.Mutex
	registrants map[string]*models.Registrant
	photos      map[string]*models.EnrollmentPhoto
}

// NewMemoryStore returns a store seeded with copies of the given registrants.
// Registrants without an ID receive one.
func NewMemoryStore(seed ...models.Registrant) *MemoryStore {
	s := &MemoryStore{
		registrants: make(map[string]*models.Registrant, len(seed)),
		photos:      make(map[string]*models.EnrollmentPhoto),
	}
	for i := range seed {
		s.Add(seed[i])
	}
	return s
}

// Add inserts or replaces a registrant and returns its ID.
func (s *MemoryStore) Add(r models.Registrant) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.VoterID = strings.ToUpper(strings.TrimSpace(r.VoterID))
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	r.UpdatedAt = r.CreatedAt
	s.registrants[r.ID] = cloneRegistrant(&r)
	return r.ID
}

func (s *MemoryStore) FindByCredentials(_ context.Context, voterID, nationalID, phone string) (*models.Registrant, error) {
	voterID = strings.ToUpper(strings.TrimSpace(voterID))
	nationalID = strings.TrimSpace(nationalID)
	phone = strings.TrimSpace(phone)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.registrants {
		if r.VoterID == voterID && r.NationalID == nationalID && r.PhoneNumber == phone {
			return cloneRegistrant(r), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*models.Registrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.registrants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRegistrant(r), nil
}

func (s *MemoryStore) CompareAndSetVoted(_ context.Context, id string, at time.Time) (*CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.registrants[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.HasVoted {
		return &CommitResult{AlreadySet: true, Record: cloneRegistrant(r)}, nil
	}

	votedAt := at
	r.HasVoted = true
	r.VotedAt = &votedAt
	r.OTPCodeHash = nil
	r.OTPExpiresAt = nil
	r.UpdatedAt = at
	return &CommitResult{Record: cloneRegistrant(r)}, nil
}

func (s *MemoryStore) SetOTP(_ context.Context, id, codeHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.registrants[id]
	if !ok {
		return ErrNotFound
	}
	hash := codeHash
	exp := expiresAt
	r.OTPCodeHash = &hash
	r.OTPExpiresAt = &exp
	return nil
}

func (s *MemoryStore) ClearOTP(_ context.Context, id, codeHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.registrants[id]
	if !ok || r.OTPCodeHash == nil || *r.OTPCodeHash != codeHash {
		return false, nil
	}
	r.OTPCodeHash = nil
	r.OTPExpiresAt = nil
	return true, nil
}

// SweepExpiredOTP empties every code slot that expired before cutoff.
func (s *MemoryStore) SweepExpiredOTP(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cleared int64
	for _, r := range s.registrants {
		if r.OTPExpiresAt != nil && r.OTPExpiresAt.Before(cutoff) {
			r.OTPCodeHash = nil
			r.OTPExpiresAt = nil
			cleared++
		}
	}
	return cleared, nil
}

func (s *MemoryStore) SavePhoto(_ context.Context, photo *models.EnrollmentPhoto) (*models.EnrollmentPhoto, error) {
	if photo == nil || len(photo.Data) == 0 {
		return nil, errors.New("registry: photo data is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.registrants[photo.RegistrantID]
	if !ok {
		return nil, ErrNotFound
	}

	cpy := *photo
	cpy.Data = append([]byte(nil), photo.Data...)
	sum := sha256.Sum256(cpy.Data)
	cpy.SHA256 = hex.EncodeToString(sum[:])
	cpy.SizeBytes = len(cpy.Data)
	if existing, ok := s.photos[photo.RegistrantID]; ok {
		cpy.ID = existing.ID
		cpy.CreatedAt = existing.CreatedAt
	}
	if cpy.ID == "" {
		cpy.ID = uuid.NewString()
	}
	s.photos[photo.RegistrantID] = &cpy

	photoID := cpy.ID
	r.PhotoID = &photoID

	out := cpy
	return &out, nil
}

func (s *MemoryStore) LoadPhoto(_ context.Context, registrantID string) (*models.EnrollmentPhoto, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	photo, ok := s.photos[registrantID]
	if !ok {
		return nil, ErrPhotoNotFound
	}
	cpy := *photo
	cpy.Data = append([]byte(nil), photo.Data...)
	return &cpy, nil
}

var (
	_ Accessor   = (*MemoryStore)(nil)
	_ PhotoStore = (*MemoryStore)(nil)
)
