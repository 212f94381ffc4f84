package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/votegate/internal/database/testutil"
	"github.com/charlesng35/votegate/internal/outcome"
	"github.com/charlesng35/votegate/internal/quality"
	"github.com/charlesng35/votegate/internal/registry"
)

func newEnrollment(t *testing.T) (*EnrollmentService, *registry.Store, string) {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithDemoRegistrants())
	store, err := registry.NewStore(db)
	require.NoError(t, err)
	audit, err := NewAuditService(db)
	require.NoError(t, err)

	svc, err := NewEnrollmentService(store, store, quality.NewValidator(quality.DefaultConfig()), audit, nil)
	require.NoError(t, err)

	r, err := store.FindByCredentials(context.Background(), "ABC1234567", "123456789012", "9876543210")
	require.NoError(t, err)
	return svc, store, r.ID
}

func TestUploadPhotoStoresAcceptedImage(t *testing.T) {
	svc, store, id := newEnrollment(t)
	ctx := context.Background()
	data := stripedPNG(t, 531, 413, 70*1024)

	upload, err := svc.UploadPhoto(ctx, id, data, "image/png")
	require.NoError(t, err)
	require.True(t, upload.Report.Accepted)
	require.NotNil(t, upload.Photo)
	require.Equal(t, 531, upload.Photo.Width)

	stored, err := store.LoadPhoto(ctx, id)
	require.NoError(t, err)
	require.Equal(t, data, stored.Data)
	require.Equal(t, "image/png", stored.ContentType)

	registrant, err := store.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, registrant.PhotoID)
	require.Equal(t, stored.ID, *registrant.PhotoID)
}

func TestUploadPhotoRejectsSmallImage(t *testing.T) {
	svc, store, id := newEnrollment(t)
	ctx := context.Background()

	upload, err := svc.UploadPhoto(ctx, id, stripedPNG(t, 531, 413, 40*1024), "")
	rej, ok := outcome.As(err)
	require.True(t, ok)
	require.Equal(t, outcome.KindInvalidInput, rej.Kind)
	require.Contains(t, rej.Reasons, "Image too small. Minimum 50KB required.")
	require.False(t, upload.Report.Accepted)

	_, err = store.LoadPhoto(ctx, id)
	require.ErrorIs(t, err, registry.ErrPhotoNotFound)
}

func TestUploadPhotoUnknownRegistrant(t *testing.T) {
	svc, _, _ := newEnrollment(t)

	_, err := svc.UploadPhoto(context.Background(), "missing", stripedPNG(t, 531, 413, 70*1024), "")
	require.Equal(t, outcome.KindNotFound, outcome.KindOf(err))
}

func TestUploadPhotoReplacesPrevious(t *testing.T) {
	svc, store, id := newEnrollment(t)
	ctx := context.Background()

	first, err := svc.UploadPhoto(ctx, id, stripedPNG(t, 531, 413, 60*1024), "")
	require.NoError(t, err)
	second, err := svc.UploadPhoto(ctx, id, stripedPNG(t, 531, 413, 80*1024), "")
	require.NoError(t, err)
	require.Equal(t, first.Photo.ID, second.Photo.ID)

	stored, err := store.LoadPhoto(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 80*1024, stored.SizeBytes)
}

func TestReferencePhoto(t *testing.T) {
	svc, _, id := newEnrollment(t)
	ctx := context.Background()

	_, err := svc.ReferencePhoto(ctx, id)
	require.Equal(t, outcome.KindNotFound, outcome.KindOf(err))

	data := stripedPNG(t, 531, 413, 70*1024)
	_, err = svc.UploadPhoto(ctx, id, data, "")
	require.NoError(t, err)

	photo, err := svc.ReferencePhoto(ctx, " "+id+" ")
	require.NoError(t, err)
	require.Equal(t, data, photo.Data)
}
