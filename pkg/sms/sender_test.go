package sms

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewSenderFallsBackToConsoleWithoutCredentials(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)

	sender, err := NewSender(Settings{Provider: ProviderTwilio}, zap.New(core))
	require.NoError(t, err)

	res, err := sender.Send(context.Background(), Message{To: "9876543210", Body: "hello"})
	require.NoError(t, err)
	require.True(t, res.Simulated)
	require.Equal(t, SimulatedID, res.ID)

	var found bool
	for _, entry := range recorded.All() {
		if entry.Message == "sms (console delivery)" {
			require.Equal(t, "+919876543210", entry.ContextMap()["to"])
			found = true
		}
	}
	require.True(t, found, "expected console delivery log entry")
}

func TestNewSenderRejectsUnknownProvider(t *testing.T) {
	_, err := NewSender(Settings{Provider: "pigeon"}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported provider")
}

func TestDisabledSender(t *testing.T) {
	sender, err := NewSender(Settings{Provider: ProviderDisabled}, nil)
	require.NoError(t, err)

	_, err = sender.Send(context.Background(), Message{To: "9876543210", Body: "hello"})
	require.True(t, errors.Is(err, ErrSMSDisabled))
}

func TestFormatNumber(t *testing.T) {
	require.Equal(t, "+919876543210", FormatNumber("9876543210", "+91"))
	require.Equal(t, "+14155550100", FormatNumber("+14155550100", "+91"))
}

func TestTwilioSenderPostsForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.True(t, strings.HasSuffix(r.URL.Path, "/Accounts/AC123/Messages.json"))

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "AC123", user)
		require.Equal(t, "secret", pass)

		require.NoError(t, r.ParseForm())
		require.Equal(t, "+919876543210", r.PostForm.Get("To"))
		require.Equal(t, "+15005550006", r.PostForm.Get("From"))
		require.Equal(t, "code 123456", r.PostForm.Get("Body"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM42"}`))
	}))
	defer server.Close()

	sender, err := NewSender(Settings{
		Provider:   ProviderTwilio,
		AccountSID: "AC123",
		AuthToken:  "secret",
		From:       "+15005550006",
		BaseURL:    server.URL,
	}, nil)
	require.NoError(t, err)

	res, err := sender.Send(context.Background(), Message{To: "9876543210", Body: "code 123456"})
	require.NoError(t, err)
	require.Equal(t, "SM42", res.ID)
	require.False(t, res.Simulated)
}

func TestTwilioSenderSurfacesProviderErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number"}`))
	}))
	defer server.Close()

	sender, err := NewSender(Settings{
		Provider:   ProviderTwilio,
		AccountSID: "AC123",
		AuthToken:  "secret",
		From:       "+15005550006",
		BaseURL:    server.URL,
	}, nil)
	require.NoError(t, err)

	_, err = sender.Send(context.Background(), Message{To: "9876543210", Body: "hi"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "21211")
}
