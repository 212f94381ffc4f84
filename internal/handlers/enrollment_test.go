package handlers_test

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/votegate/internal/handlers/testutil"
)

func portraitPNG(t *testing.T, size int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 531, 413))
	for y := 0; y < 413; y++ {
		v := uint8(30)
		if (y/8)%2 == 0 {
			v = 220
		}
		for x := 0; x < 531; x++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.LessOrEqual(t, buf.Len(), size)
	data := buf.Bytes()
	return append(data, make([]byte, size-len(data))...)
}

func dataURL(data []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}

func TestValidateImage(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.AdminRequest(http.MethodPost, "/api/enrollment/validate-image", map[string]string{
		"image": dataURL(portraitPNG(t, 70*1024)),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Valid   bool   `json:"valid"`
		Message string `json:"message"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &body)
	require.True(t, body.Valid)
	require.Equal(t, "Image meets all requirements.", body.Message)
}

func TestValidateImageRefusesOversizedBody(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithMaxBodyBytes(64<<10))

	w := env.AdminRequest(http.MethodPost, "/api/enrollment/validate-image", map[string]string{
		"image": dataURL(portraitPNG(t, 70*1024)),
	})
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
	resp := testutil.DecodeResponse(t, w)
	require.NotNil(t, resp.Error)
	require.Equal(t, "PAYLOAD_TOO_LARGE", resp.Error.Code)
}

func TestValidateImageListsEveryFailure(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.AdminRequest(http.MethodPost, "/api/enrollment/validate-image", map[string]string{
		"image": base64.StdEncoding.EncodeToString(portraitPNG(t, 40*1024)),
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	resp := testutil.DecodeResponse(t, w)
	require.Equal(t, "INVALID_INPUT", resp.Error.Code)
	require.Equal(t, "Image failed quality checks.", resp.Error.Message)
	require.Equal(t, []string{"Image too small. Minimum 50KB required."}, resp.Error.Details)
}

func TestValidateImageRejectsBadPayloads(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.AdminRequest(http.MethodPost, "/api/enrollment/validate-image", map[string]string{})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = env.AdminRequest(http.MethodPost, "/api/enrollment/validate-image", map[string]string{"image": "data:image/png,raw"})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = env.AdminRequest(http.MethodPost, "/api/enrollment/validate-image", map[string]string{
		"image":        base64.StdEncoding.EncodeToString(portraitPNG(t, 70*1024)),
		"content_type": "image/gif",
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestEnrollmentRequiresAdminToken(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/api/enrollment/validate-image", map[string]string{"image": "aGVsbG8="}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())

	w = env.Request(http.MethodPost, "/api/enrollment/validate-image", map[string]string{"image": "aGVsbG8="}, "wrong")
	require.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())

	w = env.Request(http.MethodPost, "/api/enrollment/validate-image", map[string]string{"image": "aGVsbG8="}, testutil.AdminToken)
	require.NotEqual(t, http.StatusUnauthorized, w.Code, w.Body.String())
}

func TestUploadAndFetchPhoto(t *testing.T) {
	env := testutil.NewEnv(t)
	id := env.Registrant(testutil.Asha).ID
	data := portraitPNG(t, 70*1024)
	path := "/api/enrollment/registrants/" + id + "/photo"

	w := env.AdminRequest(http.MethodGet, path, nil)
	require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())

	w = env.AdminRequest(http.MethodPut, path, map[string]string{"image": dataURL(data)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var uploaded struct {
		PhotoID     string `json:"photo_id"`
		ContentType string `json:"content_type"`
		SizeBytes   int    `json:"size_bytes"`
		SHA256      string `json:"sha256"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &uploaded)
	require.NotEmpty(t, uploaded.PhotoID)
	require.Equal(t, "image/png", uploaded.ContentType)
	require.Equal(t, len(data), uploaded.SizeBytes)
	require.Len(t, uploaded.SHA256, 64)

	w = env.AdminRequest(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var fetched struct {
		PhotoID   string `json:"photo_id"`
		ImageData string `json:"image_data"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &fetched)
	require.Equal(t, uploaded.PhotoID, fetched.PhotoID)
	require.True(t, strings.HasPrefix(fetched.ImageData, "data:image/png;base64,"))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(fetched.ImageData, "data:image/png;base64,"))
	require.NoError(t, err)
	require.Equal(t, data, raw)
}

func TestUploadPhotoUnknownRegistrant(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.AdminRequest(http.MethodPut, "/api/enrollment/registrants/missing/photo", map[string]string{
		"image": dataURL(portraitPNG(t, 70*1024)),
	})
	require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
	require.Equal(t, "NOT_FOUND", testutil.DecodeResponse(t, w).Error.Code)
}
