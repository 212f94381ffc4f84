package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/votegate/internal/app"
	"github.com/charlesng35/votegate/internal/database"
	"github.com/charlesng35/votegate/internal/middleware"
)

func testConfig(t *testing.T) *app.Config {
	t.Helper()
	cfg, err := app.LoadConfig(t.TempDir())
	require.NoError(t, err)
	cfg.Database.Path = filepath.Join(t.TempDir(), "votegate.sqlite")
	cfg.Database.SeedDemo = true
	cfg.Server.AdminToken = "bootstrap-admin"
	return cfg
}

func TestBootstrapRuntimeServesVoterPipeline(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.ExposeTestOTP = true

	generated, err := app.ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)

	stack, err := bootstrapRuntime(context.Background(), cfg, generated, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })

	require.NotNil(t, stack.Cleaner)
	require.Len(t, stack.Jobs.Jobs(), 3)

	w := httptest.NewRecorder()
	stack.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body, err := json.Marshal(map[string]string{
		"voter_id":     "ABC1234567",
		"national_id":  "123456789012",
		"phone_number": "9876543210",
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/authenticate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	stack.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			Status        string `json:"status"`
			OTPForTesting string `json:"otp_for_testing"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "otp_issued", resp.Data.Status)
	require.Len(t, resp.Data.OTPForTesting, 6)
	require.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))

	req = httptest.NewRequest(http.MethodGet, "/api/admin/audit", nil)
	req.Header.Set(middleware.HeaderAdminToken, "bootstrap-admin")
	w = httptest.NewRecorder()
	stack.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestBootstrapRuntimePersistsGeneratedBallotSecret(t *testing.T) {
	cfg := testConfig(t)
	path := cfg.Database.Path

	generated, err := app.ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	first := cfg.Auth.BallotToken.Secret

	stack, err := bootstrapRuntime(context.Background(), cfg, generated, zap.NewNop())
	require.NoError(t, err)
	stack.Shutdown(context.Background(), zap.NewNop())

	again := testConfig(t)
	again.Database.Path = path
	generated, err = app.ApplyRuntimeDefaults(again)
	require.NoError(t, err)
	require.NotEqual(t, first, again.Auth.BallotToken.Secret)

	stack, err = bootstrapRuntime(context.Background(), again, generated, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })
	require.Equal(t, first, again.Auth.BallotToken.Secret)

	stored, err := database.GetSystemSetting(context.Background(), stack.DB, database.BallotTokenSecretSetting)
	require.NoError(t, err)
	require.Equal(t, first, stored)
}

func TestBootstrapRuntimeMemoryRegistry(t *testing.T) {
	cfg := testConfig(t)
	cfg.Registry.Driver = "memory"
	cfg.Maintenance.Enabled = false

	generated, err := app.ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)

	stack, err := bootstrapRuntime(context.Background(), cfg, generated, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })

	require.Nil(t, stack.Cleaner)
	r, err := stack.Roll.FindByCredentials(context.Background(), "xyz9876543", "987654321098", "8765432109")
	require.NoError(t, err)
	require.Equal(t, "XYZ9876543", r.VoterID)
}

func TestBootstrapRuntimeRejectsMissingCascade(t *testing.T) {
	cfg := testConfig(t)
	cfg.Enrollment.FaceCascade = filepath.Join(t.TempDir(), "missing-cascade")

	generated, err := app.ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)

	_, err = bootstrapRuntime(context.Background(), cfg, generated, zap.NewNop())
	require.ErrorContains(t, err, "load face cascade")
}

func TestDefaultValidatorRunsFaceCheck(t *testing.T) {
	cfg := testConfig(t)
	require.Empty(t, cfg.Enrollment.FaceCascade)

	validator, err := initialiseValidator(cfg, zap.NewNop())
	require.NoError(t, err)

	img := image.NewGray(image.Rect(0, 0, 531, 413))
	for i := range img.Pix {
		img.Pix[i] = 180
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	data := append(buf.Bytes(), make([]byte, 70*1024-buf.Len())...)

	report := validator.Validate(data, "image/png")
	require.False(t, report.Accepted)
	require.Contains(t, report.Reasons(), "No face detected. Please ensure the photo shows a clear frontal face.")
}

func TestLoadApplicationConfigMissingPath(t *testing.T) {
	_, err := loadApplicationConfig(filepath.Join(t.TempDir(), "nope"))
	require.ErrorContains(t, err, "does not exist")
}
