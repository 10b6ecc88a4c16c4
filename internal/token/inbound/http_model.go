package inbound

import (
	"net/http"
	"time"

	"github.com/shandysiswandi/gomotp/internal/token/entity"
)

type AuthenticateRequest struct {
	Username      string `json:"username"`
	Passphrase    string `json:"passphrase,omitempty"`
	PeerChallenge string `json:"peer_challenge,omitempty"`
	AuthChallenge string `json:"auth_challenge,omitempty"`
	Response      string `json:"response,omitempty"`
}

type AuthenticateResponse struct {
	Username              string `json:"username"`
	Mode                  string `json:"mode"`
	AuthenticatorResponse string `json:"authenticator_response,omitempty"`
}

func (AuthenticateResponse) Message() string {
	return "Passphrase accepted"
}

type LoginRequest struct {
	Username   string `json:"username"`
	Passphrase string `json:"passphrase"`
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type ChangePinRequest struct {
	Pin string `json:"pin"`
}

type ChangePinResponse struct{}

func (ChangePinResponse) Message() string {
	return "PIN changed"
}

type ChangeSecretRequest struct {
	Secret string `json:"secret"`
}

type ChangeSecretResponse struct{}

func (ChangeSecretResponse) Message() string {
	return "Token secret changed"
}

type SaveCredentialRequest struct {
	Secret string `json:"secret"`
	Pin    string `json:"pin"`
}

type SaveCredentialResponse struct{}

func (SaveCredentialResponse) Message() string {
	return "Credential saved"
}

type CredentialResponse struct {
	Username      string    `json:"username"`
	HasToken      bool      `json:"has_token"`
	HasPin        bool      `json:"has_pin"`
	InvalidLogins int32     `json:"invalid_logins"`
	UpdatedAt     time.Time `json:"updated_at,omitzero"`
}

func newCredentialResponse(s entity.CredentialSummary) CredentialResponse {
	return CredentialResponse{
		Username:      s.Username,
		HasToken:      s.HasToken,
		HasPin:        s.HasPin,
		InvalidLogins: s.InvalidLogins,
		UpdatedAt:     s.UpdatedAt,
	}
}

type CredentialsResponse struct {
	Credentials []CredentialResponse `json:"credentials"`
	// meta
	total int64
	size  int32
	page  int32
}

func (r CredentialsResponse) Meta() map[string]any {
	return map[string]any{
		"total": r.total,
		"size":  r.size,
		"page":  r.page,
	}
}

type DeleteCredentialResponse struct{}

func (DeleteCredentialResponse) StatusCode() int {
	return http.StatusNoContent
}

type UnlockResponse struct{}

func (UnlockResponse) Message() string {
	return "Account unlocked"
}

type LogResponse struct {
	ID         int64     `json:"id,string"`
	Username   string    `json:"username"`
	Passphrase string    `json:"passphrase,omitempty"`
	Message    string    `json:"message"`
	LoggedAt   time.Time `json:"logged_at"`
}

type LogsResponse struct {
	Logs []LogResponse `json:"logs"`
	// meta
	total int64
	size  int32
	page  int32
}

func (r LogsResponse) Meta() map[string]any {
	return map[string]any{
		"total": r.total,
		"size":  r.size,
		"page":  r.page,
	}
}

type LogsExportResponse struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	Rows      int64     `json:"rows"`
	ExpiresAt time.Time `json:"expires_at"`
}
