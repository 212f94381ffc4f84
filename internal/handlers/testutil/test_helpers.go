package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/votegate/internal/api"
	"github.com/charlesng35/votegate/internal/app"
	iauth "github.com/charlesng35/votegate/internal/auth"
	"github.com/charlesng35/votegate/internal/ballot"
	"github.com/charlesng35/votegate/internal/credential"
	sharedtestutil "github.com/charlesng35/votegate/internal/database/testutil"
	"github.com/charlesng35/votegate/internal/middleware"
	"github.com/charlesng35/votegate/internal/models"
	"github.com/charlesng35/votegate/internal/monitoring"
	"github.com/charlesng35/votegate/internal/otp"
	"github.com/charlesng35/votegate/internal/quality"
	"github.com/charlesng35/votegate/internal/registry"
	"github.com/charlesng35/votegate/internal/services"
	"github.com/charlesng35/votegate/pkg/response"
	"github.com/charlesng35/votegate/pkg/sms"
)

const (
	// AdminToken guards the enrollment and audit routes in the test router.
	AdminToken = "test-admin-token"
	// Code is the one-time code every authenticate call issues.
	Code = "246810"
)

// Demo credentials seeded by the shared database helper.
var (
	Asha   = Credentials{VoterID: "ABC1234567", NationalID: "123456789012", PhoneNumber: "9876543210"}
	Vikram = Credentials{VoterID: "XYZ9876543", NationalID: "987654321098", PhoneNumber: "8765432109"}
	Meera  = Credentials{VoterID: "DEF5556667", NationalID: "555566667777", PhoneNumber: "7654321098"}
)

// Credentials mirrors the authenticate request body.
type Credentials struct {
	VoterID     string `json:"voter_id"`
	NationalID  string `json:"national_id"`
	PhoneNumber string `json:"phone_number"`
	LiveImage   string `json:"live_image,omitempty"`
}

// Outbox captures text messages instead of delivering them.
type Outbox struct {
	mu       sync.Mutex
	messages []sms.Message
}

// Send implements sms.Sender.
func (o *Outbox) Send(_ context.Context, msg sms.Message) (sms.Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msg)
	return sms.Result{ID: "test", Simulated: true}, nil
}

// Messages returns a copy of the captured messages.
func (o *Outbox) Messages() []sms.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]sms.Message(nil), o.messages...)
}

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Router *gin.Engine
	Store  *registry.Store
	Tokens *iauth.BallotTokenService
	Outbox *Outbox
	Config *app.Config
}

// Option customises the test environment before the router is built.
type Option func(*app.Config)

// WithRateLimit enables the per-client limiter.
func WithRateLimit(requests int, window time.Duration) Option {
	return func(cfg *app.Config) {
		cfg.Server.RateLimit = app.RateLimitConfig{Enabled: true, Requests: requests, Window: window}
	}
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(cfg *app.Config) {
		cfg.Server.MaxBodyBytes = n
	}
}

// WithTestOTPEcho returns issued codes in the authenticate response.
func WithTestOTPEcho() Option {
	return func(cfg *app.Config) {
		cfg.Server.ExposeTestOTP = true
	}
}

// NewEnv provisions a fresh handler test environment with migrations and demo registrants applied.
func NewEnv(t *testing.T, opts ...Option) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithDemoRegistrants())

	cfg := &app.Config{}
	cfg.Server.AdminToken = AdminToken
	for _, opt := range opts {
		opt(cfg)
	}

	store, err := registry.NewStore(db)
	require.NoError(t, err)
	audit, err := services.NewAuditService(db)
	require.NoError(t, err)

	outbox := &Outbox{}
	gate, err := credential.NewGate(store)
	require.NoError(t, err)
	codes, err := otp.NewManager(store, outbox,
		otp.WithCodeGenerator(func() (string, error) { return Code, nil }),
	)
	require.NoError(t, err)
	committer, err := ballot.NewCommitter(store, ballot.WithSender(outbox))
	require.NoError(t, err)
	tokens, err := iauth.NewBallotTokenService(iauth.BallotTokenConfig{
		Secret: "test-suite-ballot-secret-32-bytes!!",
		Issuer: "test-suite",
		TTL:    10 * time.Minute,
	})
	require.NoError(t, err)

	voting, err := services.NewVotingService(gate, codes, committer, tokens,
		services.WithVotingAudit(audit),
		services.WithTestOTPEcho(cfg.Server.ExposeTestOTP),
	)
	require.NoError(t, err)

	enrollment, err := services.NewEnrollmentService(store, store, quality.NewValidator(quality.DefaultConfig()), audit, nil)
	require.NoError(t, err)

	health := monitoring.NewHealthManager(time.Second)
	health.Register("database", true, monitoring.DatabaseProbe(db))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	router, err := api.NewRouter(cfg, api.Dependencies{
		Voting:     voting,
		Enrollment: enrollment,
		Audit:      audit,
		Tokens:     tokens,
		Health:     health,
		RateStore:  middleware.NewMemoryRateStore(ctx),
	})
	require.NoError(t, err)

	return &Env{
		T:      t,
		DB:     db,
		Router: router,
		Store:  store,
		Tokens: tokens,
		Outbox: outbox,
		Config: cfg,
	}
}

// Registrant loads the seeded registrant holding the given credentials.
func (e *Env) Registrant(creds Credentials) *models.Registrant {
	e.T.Helper()
	r, err := e.Store.FindByCredentials(context.Background(), creds.VoterID, creds.NationalID, creds.PhoneNumber)
	require.NoError(e.T, err)
	return r
}

// Authenticated is the subset of the authenticate response used by tests.
type Authenticated struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	MaskedPhone string `json:"masked_phone"`
	Voter       struct {
		ID       string `json:"id"`
		VoterID  string `json:"voter_id"`
		HasVoted bool   `json:"has_voted"`
	} `json:"voter"`
	OTPForTesting string `json:"otp_for_testing"`
}

// Verified is the subset of the verify-otp response used by tests.
type Verified struct {
	Status      string `json:"status"`
	BallotToken string `json:"ballot_token"`
	TokenType   string `json:"token_type"`
}

// Authenticate posts the credentials and requires a 200 response.
func (e *Env) Authenticate(creds Credentials) Authenticated {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/authenticate", creds, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	var out Authenticated
	DecodeInto(e.T, DecodeResponse(e.T, w).Data, &out)
	return out
}

// BallotToken authenticates and confirms the code, returning a ballot token
// for the registrant.
func (e *Env) BallotToken(creds Credentials) (string, string) {
	e.T.Helper()

	auth := e.Authenticate(creds)
	w := e.Request(http.MethodPost, "/api/auth/verify-otp", map[string]string{
		"registrant_id": auth.Voter.ID,
		"otp":           Code,
	}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	var out Verified
	DecodeInto(e.T, DecodeResponse(e.T, w).Data, &out)
	require.NotEmpty(e.T, out.BallotToken)
	return auth.Voter.ID, out.BallotToken
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and the bearer token.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()
	return e.do(method, path, body, func(req *http.Request) {
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	})
}

// AdminRequest executes a request carrying the admin token header.
func (e *Env) AdminRequest(method, path string, body any) *httptest.ResponseRecorder {
	e.T.Helper()
	return e.do(method, path, body, func(req *http.Request) {
		req.Header.Set(middleware.HeaderAdminToken, AdminToken)
	})
}

func (e *Env) do(method, path string, body any, decorate func(*http.Request)) *httptest.ResponseRecorder {
	e.T.Helper()

	buf := bytes.NewBuffer(nil)
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.RemoteAddr = "198.51.100.7:5000"
	decorate(req)

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
