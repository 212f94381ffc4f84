package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrSMSDisabled signals that SMS delivery is disabled via configuration.
var ErrSMSDisabled = errors.New("sms: delivery disabled")

// SimulatedID is the message id reported by the console sender.
const SimulatedID = "simulated_sms_id"

// Provider names accepted by NewSender.
const (
	ProviderTwilio   = "twilio"
	ProviderConsole  = "console"
	ProviderDisabled = "disabled"
)

// Message represents an outbound text message. To holds a domestic or E.164
// number; domestic numbers get the configured country code prepended.
type Message struct {
	To   string
	Body string
}

// Result describes an accepted message.
type Result struct {
	ID        string
	Simulated bool
}

// Sender defines behaviour for sending text messages.
type Sender interface {
	Send(ctx context.Context, msg Message) (Result, error)
}

// Settings capture the runtime configuration required by the SMS senders.
type Settings struct {
	Provider    string
	AccountSID  string
	AuthToken   string
	From        string
	CountryCode string
	BaseURL     string
	Timeout     time.Duration
}

// NewSender builds the sender selected by settings.Provider. A twilio provider
// without credentials degrades to the console sender so local setups keep
// working.
func NewSender(cfg Settings, log *zap.Logger) (Sender, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if strings.TrimSpace(cfg.CountryCode) == "" {
		cfg.CountryCode = "+91"
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderTwilio:
		if strings.TrimSpace(cfg.AccountSID) == "" || strings.TrimSpace(cfg.AuthToken) == "" {
			log.Warn("twilio credentials missing, falling back to console sms")
			return &consoleSender{cfg: cfg, log: log}, nil
		}
		if strings.TrimSpace(cfg.From) == "" {
			return nil, errors.New("sms: from number is required for twilio")
		}
		return newTwilioSender(cfg), nil
	case ProviderConsole, "":
		return &consoleSender{cfg: cfg, log: log}, nil
	case ProviderDisabled:
		return disabledSender{}, nil
	default:
		return nil, fmt.Errorf("sms: unsupported provider %q", cfg.Provider)
	}
}

// FormatNumber prefixes domestic numbers with the country code.
func FormatNumber(number, countryCode string) string {
	number = strings.TrimSpace(number)
	if strings.HasPrefix(number, "+") {
		return number
	}
	return countryCode + number
}

type disabledSender struct{}

func (disabledSender) Send(context.Context, Message) (Result, error) {
	return Result{}, ErrSMSDisabled
}

type consoleSender struct {
	cfg Settings
	log *zap.Logger
}

func (s *consoleSender) Send(_ context.Context, msg Message) (Result, error) {
	s.log.Info("sms (console delivery)",
		zap.String("to", FormatNumber(msg.To, s.cfg.CountryCode)),
		zap.String("body", msg.Body),
	)
	return Result{ID: SimulatedID, Simulated: true}, nil
}

const defaultTwilioBaseURL = "https://api.twilio.com"

type twilioSender struct {
	cfg    Settings
	client *http.Client
}

func newTwilioSender(cfg Settings) *twilioSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultTwilioBaseURL
	}
	return &twilioSender{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type twilioResponse struct {
	SID     string `json:"sid"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *twilioSender) Send(ctx context.Context, msg Message) (Result, error) {
	if strings.TrimSpace(msg.To) == "" {
		return Result{}, errors.New("sms: recipient is required")
	}

	form := url.Values{}
	form.Set("To", FormatNumber(msg.To, s.cfg.CountryCode))
	form.Set("From", s.cfg.From)
	form.Set("Body", msg.Body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(s.cfg.BaseURL, "/"), url.PathEscape(s.cfg.AccountSID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, fmt.Errorf("sms: build request: %w", err)
	}
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("sms: send: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Result{}, fmt.Errorf("sms: read response: %w", err)
	}

	var payload twilioResponse
	_ = json.Unmarshal(body, &payload)

	if resp.StatusCode >= http.StatusBadRequest {
		if payload.Message != "" {
			return Result{}, fmt.Errorf("sms: provider rejected message (status %d, code %d): %s", resp.StatusCode, payload.Code, payload.Message)
		}
		return Result{}, fmt.Errorf("sms: provider returned status %d", resp.StatusCode)
	}

	return Result{ID: payload.SID}, nil
}
