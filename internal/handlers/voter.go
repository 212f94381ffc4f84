package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/votegate/internal/biometric"
	"github.com/charlesng35/votegate/internal/credential"
	"github.com/charlesng35/votegate/internal/middleware"
	"github.com/charlesng35/votegate/internal/models"
	"github.com/charlesng35/votegate/internal/outcome"
	"github.com/charlesng35/votegate/internal/services"
	"github.com/charlesng35/votegate/pkg/errors"
	"github.com/charlesng35/votegate/pkg/response"
)

const (
	statusAlreadyVoted = "already_voted"
	statusVoteRecorded = "vote_recorded"
	statusVerified     = "verified"
	ballotTokenType    = "Bearer"
)

// VoterHandler exposes the public voter pipeline.
type VoterHandler struct {
	svc *services.VotingService
}

// NewVoterHandler constructs a VoterHandler.
func NewVoterHandler(svc *services.VotingService) *VoterHandler {
	return &VoterHandler{svc: svc}
}

type authenticateRequest struct {
	VoterID     string `json:"voter_id"`
	NationalID  string `json:"national_id"`
	PhoneNumber string `json:"phone_number"`
	LiveImage   string `json:"live_image"`
}

type verifyOTPRequest struct {
	RegistrantID string `json:"registrant_id" validate:"required"`
	OTP          string `json:"otp" validate:"required"`
}

type voteRequest struct {
	RegistrantID string `json:"registrant_id" validate:"required"`
}

type voterView struct {
	ID             string     `json:"id"`
	VoterID        string     `json:"voter_id"`
	FullName       string     `json:"full_name"`
	Constituency   string     `json:"constituency"`
	PollingStation string     `json:"polling_station"`
	HasVoted       bool       `json:"has_voted"`
	VotedAt        *time.Time `json:"voted_at,omitempty"`
}

func newVoterView(r *models.Registrant) *voterView {
	if r == nil {
		return nil
	}
	return &voterView{
		ID:             r.ID,
		VoterID:        r.VoterID,
		FullName:       r.FullName,
		Constituency:   r.Constituency,
		PollingStation: r.PollingStation,
		HasVoted:       r.HasVoted,
		VotedAt:        r.VotedAt,
	}
}

type authenticateResponse struct {
	Status        string              `json:"status"`
	AttemptID     string              `json:"attempt_id"`
	Message       string              `json:"message"`
	Voter         *voterView          `json:"voter"`
	MaskedPhone   string              `json:"masked_phone,omitempty"`
	OTPExpiresAt  *time.Time          `json:"otp_expires_at,omitempty"`
	Biometric     *biometric.Decision `json:"biometric,omitempty"`
	OTPForTesting string              `json:"otp_for_testing,omitempty"`
}

// Authenticate handles POST /api/auth/authenticate.
func (h *VoterHandler) Authenticate(c *gin.Context) {
	var req authenticateRequest
	if !bindJSON(c, &req) {
		return
	}

	in := services.AuthenticateInput{
		Credentials: credential.Credentials{
			VoterID:     req.VoterID,
			NationalID:  req.NationalID,
			PhoneNumber: req.PhoneNumber,
		},
	}
	if req.LiveImage != "" {
		live, _, err := decodeImagePayload(req.LiveImage)
		if err != nil {
			writeError(c, outcome.Reject(outcome.KindInvalidInput, "Live image could not be read: "+err.Error()))
			return
		}
		in.LiveImage = live
	}

	res, err := h.svc.Authenticate(requestContext(c), in)
	if err != nil {
		writeError(c, err)
		return
	}

	out := authenticateResponse{
		Status:        res.Status,
		AttemptID:     res.AttemptID,
		Message:       res.Message,
		Voter:         newVoterView(res.Registrant),
		MaskedPhone:   res.MaskedPhone,
		Biometric:     res.Biometric,
		OTPForTesting: res.TestOTP,
	}
	if res.Status == services.StatusAlreadyCast {
		out.Status = statusAlreadyVoted
	}
	if !res.ExpiresAt.IsZero() {
		exp := res.ExpiresAt
		out.OTPExpiresAt = &exp
	}
	response.Success(c, http.StatusOK, out)
}

// VerifyOTP handles POST /api/auth/verify-otp.
func (h *VoterHandler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if !bindAndValidate(c, &req) {
		return
	}

	res, err := h.svc.ConfirmOTP(requestContext(c), req.RegistrantID, req.OTP)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"status":           statusVerified,
		"voter":            newVoterView(res.Registrant),
		"ballot_token":     res.BallotToken,
		"token_type":       ballotTokenType,
		"token_expires_at": res.TokenExpiresAt,
	})
}

// Vote handles POST /api/auth/vote. The ballot token must have been issued
// for the registrant named in the body.
func (h *VoterHandler) Vote(c *gin.Context) {
	var req voteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if req.RegistrantID != middleware.RegistrantID(c) {
		response.Error(c, &errors.AppError{
			Code:       errors.ErrForbidden.Code,
			Message:    "Ballot token was issued for a different voter",
			StatusCode: errors.ErrForbidden.StatusCode,
		})
		return
	}

	receipt, err := h.svc.CommitVote(requestContext(c), req.RegistrantID)
	if err != nil {
		writeError(c, err)
		return
	}

	status := statusVoteRecorded
	if !receipt.FirstCommit {
		status = statusAlreadyVoted
	}
	response.Success(c, http.StatusOK, gin.H{
		"status":          status,
		"confirmation_id": receipt.ConfirmationID,
		"voter":           newVoterView(receipt.Registrant),
	})
}
