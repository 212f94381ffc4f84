package credential

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/votegate/internal/models"
	"github.com/charlesng35/votegate/internal/outcome"
	"github.com/charlesng35/votegate/internal/registry"
)

var electionDay = time.Date(2024, 4, 19, 10, 0, 0, 0, time.UTC)

func newGate(t *testing.T, seed ...models.Registrant) (*Gate, *registry.MemoryStore) {
	t.Helper()
	store := registry.NewMemoryStore(seed...)
	gate, err := NewGate(store, WithClock(func() time.Time { return electionDay }))
	require.NoError(t, err)
	return gate, store
}

func adult() models.Registrant {
	return models.Registrant{
		VoterID:     "ABC1234567",
		NationalID:  "123456789012",
		PhoneNumber: "9876543210",
		FullName:    "Asha Rao",
		DateOfBirth: time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC),
	}
}

func creds() Credentials {
	return Credentials{VoterID: "abc1234567", NationalID: "123456789012", PhoneNumber: "9876543210"}
}

func TestCheckPasses(t *testing.T) {
	gate, _ := newGate(t, adult())

	res, err := gate.Check(context.Background(), creds())
	require.NoError(t, err)
	require.False(t, res.AlreadyCast)
	require.Equal(t, "ABC1234567", res.Registrant.VoterID)
}

func TestCheckWrongPhoneIsNotFound(t *testing.T) {
	gate, _ := newGate(t, adult())

	c := creds()
	c.PhoneNumber = "9876543211"
	_, err := gate.Check(context.Background(), c)
	require.Equal(t, outcome.KindNotFound, outcome.KindOf(err))
}

func TestCheckUnderageIsIneligible(t *testing.T) {
	minor := adult()
	minor.DateOfBirth = time.Date(2006, 4, 20, 0, 0, 0, 0, time.UTC)
	gate, store := newGate(t, minor)

	_, err := gate.Check(context.Background(), creds())
	require.Equal(t, outcome.KindIneligible, outcome.KindOf(err))

	stored, err := store.FindByCredentials(context.Background(), "ABC1234567", "123456789012", "9876543210")
	require.NoError(t, err)
	require.False(t, stored.HasActiveCode())
}

func TestCheckEighteenthBirthdayIsEligible(t *testing.T) {
	r := adult()
	r.DateOfBirth = time.Date(2006, 4, 19, 0, 0, 0, 0, time.UTC)
	gate, _ := newGate(t, r)

	_, err := gate.Check(context.Background(), creds())
	require.NoError(t, err)
}

func TestCheckAlreadyCast(t *testing.T) {
	r := adult()
	r.HasVoted = true
	votedAt := electionDay.Add(-time.Hour)
	r.VotedAt = &votedAt
	gate, _ := newGate(t, r)

	res, err := gate.Check(context.Background(), creds())
	require.NoError(t, err)
	require.True(t, res.AlreadyCast)
	require.NotNil(t, res.Registrant.VotedAt)
}

func TestCheckRejectsMalformedInputBeforeLookup(t *testing.T) {
	finder := &failingFinder{err: errors.New("should not be called")}
	gate, err := NewGate(finder)
	require.NoError(t, err)

	_, err = gate.Check(context.Background(), Credentials{VoterID: "AB12", NationalID: "12", PhoneNumber: "1234567890"})
	rej, ok := outcome.As(err)
	require.True(t, ok)
	require.Equal(t, outcome.KindInvalidInput, rej.Kind)
	require.Equal(t, []string{ReasonVoterIDFormat, ReasonNationalIDFormat, ReasonPhoneFormat}, rej.Reasons)
	require.Zero(t, finder.calls)
}

func TestCheckRegistryFailureIsRetryable(t *testing.T) {
	gate, err := NewGate(&failingFinder{err: errors.New("connection reset")})
	require.NoError(t, err)

	_, err = gate.Check(context.Background(), creds())
	rej, ok := outcome.As(err)
	require.True(t, ok)
	require.Equal(t, outcome.KindRegistryUnavailable, rej.Kind)
	require.True(t, rej.Retryable())
}

func TestAge(t *testing.T) {
	dob := time.Date(2000, 2, 29, 0, 0, 0, 0, time.UTC)
	require.Equal(t, 23, Age(dob, time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, 24, Age(dob, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, 0, Age(time.Time{}, electionDay))
}

func TestMasked(t *testing.T) {
	m := creds().Normalised().Masked()
	require.Equal(t, "ABC1234567", m["voter_id"])
	require.Equal(t, "********9012", m["national_id"])
	require.Equal(t, "******3210", m["phone_number"])
}

type failingFinder struct {
	err   error
	calls int
}

func (f *failingFinder) FindByCredentials(context.Context, string, string, string) (*models.Registrant, error) {
	f.calls++
	return nil, f.err
}
