package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/votegate/internal/auth"
	"github.com/charlesng35/votegate/internal/ballot"
	"github.com/charlesng35/votegate/internal/biometric"
	"github.com/charlesng35/votegate/internal/credential"
	"github.com/charlesng35/votegate/internal/database/testutil"
	"github.com/charlesng35/votegate/internal/models"
	"github.com/charlesng35/votegate/internal/otp"
	"github.com/charlesng35/votegate/internal/registry"
)

var pipelineNow = time.Date(2024, 4, 19, 9, 0, 0, 0, time.UTC)

type fakeVerifier struct {
	decision *biometric.Decision
	err      error
	calls    int
	lastRef  []byte
}

func (f *fakeVerifier) Verify(_ context.Context, reference, _ []byte) (*biometric.Decision, error) {
	f.calls++
	f.lastRef = reference
	return f.decision, f.err
}

type pipeline struct {
	svc   *VotingService
	store *registry.MemoryStore
	audit *AuditService
	clock *time.Time
	ids   map[string]string
}

func newPipeline(t *testing.T, opts ...VotingOption) *pipeline {
	t.Helper()

	store := registry.NewMemoryStore()
	ids := map[string]string{
		"adult": store.Add(models.Registrant{
			VoterID: "ABC1234567", NationalID: "123456789012", PhoneNumber: "9876543210",
			FullName: "Asha Rao", DateOfBirth: time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC),
		}),
		"minor": store.Add(models.Registrant{
			VoterID: "MIN0000001", NationalID: "111122223333", PhoneNumber: "9000000001",
			DateOfBirth: time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC),
		}),
	}

	current := pipelineNow
	clock := func() time.Time { return current }

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	audit, err := NewAuditService(db)
	require.NoError(t, err)

	gate, err := credential.NewGate(store, credential.WithClock(clock))
	require.NoError(t, err)
	codes, err := otp.NewManager(store, nil,
		otp.WithClock(clock),
		otp.WithCodeGenerator(func() (string, error) { return "123456", nil }),
	)
	require.NoError(t, err)
	committer, err := ballot.NewCommitter(store, ballot.WithClock(clock))
	require.NoError(t, err)
	tokens, err := auth.NewBallotTokenService(auth.BallotTokenConfig{Secret: "test-secret", Clock: clock})
	require.NoError(t, err)

	opts = append([]VotingOption{WithVotingAudit(audit), WithVotingClock(clock)}, opts...)
	svc, err := NewVotingService(gate, codes, committer, tokens, opts...)
	require.NoError(t, err)

	return &pipeline{svc: svc, store: store, audit: audit, clock: &current, ids: ids}
}

func adultCredentials() credential.Credentials {
	return credential.Credentials{VoterID: "abc1234567", NationalID: "123456789012", PhoneNumber: "9876543210"}
}

func stripedPNG(t *testing.T, w, h, size int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		v := uint8(30)
		if (y/8)%2 == 0 {
			v = 220
		}
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.LessOrEqual(t, buf.Len(), size)
	data := buf.Bytes()
	return append(data, make([]byte, size-len(data))...)
}
