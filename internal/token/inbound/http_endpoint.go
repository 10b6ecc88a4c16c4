package inbound

import (
	"github.com/shandysiswandi/gomotp/internal/pkg/router"
	"github.com/shandysiswandi/gomotp/internal/token/usecase"
)

// HeaderIdempotencyKey deduplicates retried unlock requests.
const HeaderIdempotencyKey = "Idempotency-Key"

// HTTPEndpoint exposes HTTP handlers for token verification and administration.
type HTTPEndpoint struct {
	uc uc
}

// Authenticate verifies a one-time passphrase.
// @Summary Verify passphrase
// @Description Verifies a plain mOTP passphrase, or an MSCHAPv2 response computed with it when response is set. Challenges and response are hex encoded.
// @Tags Token, Verification
// @Accept json
// @Produce json
// @Param request body AuthenticateRequest true "Attempt payload"
// @Success 200 {object} router.successResponse{data=AuthenticateResponse} "Passphrase accepted"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 401 {object} router.errorResponse "Invalid username or passphrase, or passphrase already used"
// @Failure 403 {object} router.errorResponse "Account is locked"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/token/authenticate [post]
func (h *HTTPEndpoint) Authenticate(r *router.Request) (any, error) {
	var req AuthenticateRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.Authenticate(r.Context(), usecase.AuthenticateInput{
		Username:      req.Username,
		Passphrase:    req.Passphrase,
		PeerChallenge: req.PeerChallenge,
		AuthChallenge: req.AuthChallenge,
		Response:      req.Response,
		ClientIP:      r.RemoteAddr,
	})
	if err != nil {
		return nil, err
	}

	if err := resp.Outcome.Kind.Err(); err != nil {
		return nil, err
	}

	return AuthenticateResponse{
		Username:              resp.Username,
		Mode:                  resp.Mode,
		AuthenticatorResponse: resp.AuthenticatorResponse,
	}, nil
}

// Login verifies a passphrase and issues an access token for the management API.
// @Summary Login with passphrase
// @Tags Token, Verification
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login payload"
// @Success 200 {object} router.successResponse{data=LoginResponse} "Access token"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 401 {object} router.errorResponse "Invalid username or passphrase"
// @Failure 403 {object} router.errorResponse "Account is locked"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/token/login [post]
func (h *HTTPEndpoint) Login(r *router.Request) (any, error) {
	var req LoginRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.Login(r.Context(), usecase.LoginInput{
		Username:   req.Username,
		Passphrase: req.Passphrase,
		ClientIP:   r.RemoteAddr,
	})
	if err != nil {
		return nil, err
	}

	return LoginResponse{AccessToken: resp.AccessToken, ExpiresAt: resp.ExpiresAt}, nil
}

// Me returns the caller's credential status.
// @Summary Current credential
// @Tags Token, Self Service
// @Security BearerAuth
// @Produce json
// @Success 200 {object} router.successResponse{data=CredentialResponse} "Credential status"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 404 {object} router.errorResponse "Credential not found"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/token/me [get]
func (h *HTTPEndpoint) Me(r *router.Request) (any, error) {
	resp, err := h.uc.CredentialDetail(r.Context(), usecase.CredentialDetailInput{})
	if err != nil {
		return nil, err
	}

	return newCredentialResponse(*resp), nil
}

// ChangePin replaces the caller's PIN.
// @Summary Change PIN
// @Description All PIN problems are reported together in details.
// @Tags Token, Self Service
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body ChangePinRequest true "New PIN"
// @Success 200 {object} router.successResponse{data=ChangePinResponse} "PIN changed"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 404 {object} router.errorResponse "Credential not found"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/token/me/pin [put]
func (h *HTTPEndpoint) ChangePin(r *router.Request) (any, error) {
	var req ChangePinRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if err := h.uc.ChangePin(r.Context(), usecase.ChangePinInput{Pin: req.Pin}); err != nil {
		return nil, err
	}

	return ChangePinResponse{}, nil
}

// ChangeSecret replaces the caller's token secret, enrolling a token when none exists.
// @Summary Change token secret
// @Tags Token, Self Service
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body ChangeSecretRequest true "New secret"
// @Success 200 {object} router.successResponse{data=ChangeSecretResponse} "Secret changed"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/token/me/secret [put]
func (h *HTTPEndpoint) ChangeSecret(r *router.Request) (any, error) {
	var req ChangeSecretRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if err := h.uc.ChangeSecret(r.Context(), usecase.ChangeSecretInput{Secret: req.Secret}); err != nil {
		return nil, err
	}

	return ChangeSecretResponse{}, nil
}

// ListCredentials returns enrolled credentials.
// @Summary List credentials
// @Tags Token, Administration
// @Security BearerAuth
// @Produce json
// @Param search query string false "Search by username"
// @Param size query int false "Pagination size"
// @Param page query int false "Pagination page"
// @Success 200 {object} router.successResponse{data=CredentialsResponse} "Credential list"
// @Failure 400 {object} router.errorResponse "Invalid query parameters"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 403 {object} router.errorResponse "Forbidden"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/token/credentials [get]
func (h *HTTPEndpoint) ListCredentials(r *router.Request) (any, error) {
	size, err := r.GetQueryInt32("size")
	if err != nil {
		return nil, err
	}

	page, err := r.GetQueryInt32("page")
	if err != nil {
		return nil, err
	}

	resp, err := h.uc.ListCredentials(r.Context(), usecase.ListCredentialsInput{
		Search: r.GetQuery("search"),
		Page:   page,
		Size:   size,
	})
	if err != nil {
		return nil, err
	}

	creds := make([]CredentialResponse, 0, len(resp.Credentials))
	for _, item := range resp.Credentials {
		creds = append(creds, newCredentialResponse(item))
	}

	return CredentialsResponse{
		Credentials: creds,
		total:       resp.Total,
		size:        resp.Size,
		page:        resp.Page,
	}, nil
}

// CredentialDetail returns one user's credential status.
// @Summary Credential detail
// @Tags Token, Administration
// @Security BearerAuth
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} router.successResponse{data=CredentialResponse} "Credential status"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 403 {object} router.errorResponse "Forbidden"
// @Failure 404 {object} router.errorResponse "Credential not found"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/token/credentials/{username} [get]
func (h *HTTPEndpoint) CredentialDetail(r *router.Request) (any, error) {
	resp, err := h.uc.CredentialDetail(r.Context(), usecase.CredentialDetailInput{Username: r.GetParam("username")})
	if err != nil {
		return nil, err
	}

	return newCredentialResponse(*resp), nil
}

// SaveCredential enrolls or replaces a user's token secret and PIN.
// @Summary Save credential
// @Tags Token, Administration
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param username path string true "Username"
// @Param request body SaveCredentialRequest true "Secret and PIN"
// @Success 200 {object} router.successResponse{data=SaveCredentialResponse} "Credential saved"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 403 {object} router.errorResponse "Forbidden"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/token/credentials/{username} [put]
func (h *HTTPEndpoint) SaveCredential(r *router.Request) (any, error) {
	var req SaveCredentialRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if err := h.uc.SaveCredential(r.Context(), usecase.SaveCredentialInput{
		Username: r.GetParam("username"),
		Secret:   req.Secret,
		Pin:      req.Pin,
	}); err != nil {
		return nil, err
	}

	return SaveCredentialResponse{}, nil
}

// DeleteCredential removes a user's token.
// @Summary Delete credential
// @Tags Token, Administration
// @Security BearerAuth
// @Param username path string true "Username"
// @Success 204 "Credential deleted"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 403 {object} router.errorResponse "Forbidden"
// @Failure 404 {object} router.errorResponse "Credential not found"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/token/credentials/{username} [delete]
func (h *HTTPEndpoint) DeleteCredential(r *router.Request) (any, error) {
	if err := h.uc.DeleteCredential(r.Context(), usecase.DeleteCredentialInput{Username: r.GetParam("username")}); err != nil {
		return nil, err
	}

	return DeleteCredentialResponse{}, nil
}

// Unlock resets a user's failed-login counter.
// @Summary Unlock account
// @Tags Token, Administration
// @Security BearerAuth
// @Produce json
// @Param username path string true "Username"
// @Param Idempotency-Key header string false "Deduplicates retried requests"
// @Success 200 {object} router.successResponse{data=UnlockResponse} "Account unlocked"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 403 {object} router.errorResponse "Forbidden"
// @Failure 404 {object} router.errorResponse "Credential not found"
// @Failure 409 {object} router.errorResponse "Unlock already in progress"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/token/credentials/{username}/unlock [post]
func (h *HTTPEndpoint) Unlock(r *router.Request) (any, error) {
	if err := h.uc.Unlock(r.Context(), usecase.UnlockInput{
		Username:       r.GetParam("username"),
		IdempotencyKey: r.Header.Get(HeaderIdempotencyKey),
	}); err != nil {
		return nil, err
	}

	return UnlockResponse{}, nil
}

// ListLogs returns audit log entries.
// @Summary List audit logs
// @Tags Token, Administration
// @Security BearerAuth
// @Produce json
// @Param username query string false "Filter by username"
// @Param message query string false "Filter by message, e.g. Success or Replay detected"
// @Param from query string false "Logged at or after (RFC3339)"
// @Param to query string false "Logged at or before (RFC3339)"
// @Param size query int false "Pagination size"
// @Param page query int false "Pagination page"
// @Success 200 {object} router.successResponse{data=LogsResponse} "Audit log"
// @Failure 400 {object} router.errorResponse "Invalid query parameters"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 403 {object} router.errorResponse "Forbidden"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/token/logs [get]
func (h *HTTPEndpoint) ListLogs(r *router.Request) (any, error) {
	size, err := r.GetQueryInt32("size")
	if err != nil {
		return nil, err
	}

	page, err := r.GetQueryInt32("page")
	if err != nil {
		return nil, err
	}

	from, err := r.GetQueryTime("from")
	if err != nil {
		return nil, err
	}

	to, err := r.GetQueryTime("to")
	if err != nil {
		return nil, err
	}

	resp, err := h.uc.ListLogs(r.Context(), usecase.ListLogsInput{
		Username: r.GetQuery("username"),
		Message:  r.GetQuery("message"),
		From:     from,
		To:       to,
		Page:     page,
		Size:     size,
	})
	if err != nil {
		return nil, err
	}

	logs := make([]LogResponse, 0, len(resp.Logs))
	for _, item := range resp.Logs {
		logs = append(logs, LogResponse{
			ID:         item.ID,
			Username:   item.Username,
			Passphrase: item.Passphrase,
			Message:    item.Message,
			LoggedAt:   item.LoggedAt,
		})
	}

	return LogsResponse{
		Logs:  logs,
		total: resp.Total,
		size:  resp.Size,
		page:  resp.Page,
	}, nil
}

// ExportLogs writes matching audit entries as CSV to object storage.
// @Summary Export audit logs
// @Description Returns a time-limited download link to the CSV file.
// @Tags Token, Administration
// @Security BearerAuth
// @Produce json
// @Param username query string false "Filter by username"
// @Param message query string false "Filter by message"
// @Param from query string false "Logged at or after (RFC3339)"
// @Param to query string false "Logged at or before (RFC3339)"
// @Success 200 {object} router.successResponse{data=LogsExportResponse} "Export link"
// @Failure 400 {object} router.errorResponse "Invalid query parameters"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 403 {object} router.errorResponse "Forbidden"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/token/logs-export [get]
func (h *HTTPEndpoint) ExportLogs(r *router.Request) (any, error) {
	from, err := r.GetQueryTime("from")
	if err != nil {
		return nil, err
	}

	to, err := r.GetQueryTime("to")
	if err != nil {
		return nil, err
	}

	resp, err := h.uc.ExportLogs(r.Context(), usecase.ExportLogsInput{
		Username: r.GetQuery("username"),
		Message:  r.GetQuery("message"),
		From:     from,
		To:       to,
	})
	if err != nil {
		return nil, err
	}

	return LogsExportResponse{
		URL:       resp.URL,
		Key:       resp.Key,
		Rows:      resp.Rows,
		ExpiresAt: resp.ExpiresAt,
	}, nil
}
