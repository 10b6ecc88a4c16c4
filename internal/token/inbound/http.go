package inbound

import (
	"context"
	"net/http"

	"github.com/shandysiswandi/gomotp/internal/pkg/router"
	"github.com/shandysiswandi/gomotp/internal/token/entity"
	"github.com/shandysiswandi/gomotp/internal/token/usecase"
)

type uc interface {
	Authenticate(ctx context.Context, in usecase.AuthenticateInput) (*usecase.AuthenticateOutput, error)
	Login(ctx context.Context, in usecase.LoginInput) (*usecase.LoginOutput, error)

	CredentialDetail(ctx context.Context, in usecase.CredentialDetailInput) (*entity.CredentialSummary, error)
	ChangePin(ctx context.Context, in usecase.ChangePinInput) error
	ChangeSecret(ctx context.Context, in usecase.ChangeSecretInput) error

	ListCredentials(ctx context.Context, in usecase.ListCredentialsInput) (*usecase.ListCredentialsOutput, error)
	SaveCredential(ctx context.Context, in usecase.SaveCredentialInput) error
	DeleteCredential(ctx context.Context, in usecase.DeleteCredentialInput) error
	Unlock(ctx context.Context, in usecase.UnlockInput) error
	ListLogs(ctx context.Context, in usecase.ListLogsInput) (*usecase.ListLogsOutput, error)
	ExportLogs(ctx context.Context, in usecase.ExportLogsInput) (*usecase.ExportLogsOutput, error)
}

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	// Verification
	r.Public(http.MethodPost, "/api/v1/token/authenticate")
	r.Public(http.MethodPost, "/api/v1/token/login")
	r.POST("/api/v1/token/authenticate", end.Authenticate)
	r.POST("/api/v1/token/login", end.Login)

	// Self service (need authenticated)
	r.GET("/api/v1/token/me", end.Me)
	r.PUT("/api/v1/token/me/pin", end.ChangePin)
	r.PUT("/api/v1/token/me/secret", end.ChangeSecret)

	// Administration (need authenticated & admin group)
	r.GET("/api/v1/token/credentials", end.ListCredentials)
	r.GET("/api/v1/token/credentials/:username", end.CredentialDetail)
	r.PUT("/api/v1/token/credentials/:username", end.SaveCredential)
	r.DELETE("/api/v1/token/credentials/:username", end.DeleteCredential)
	r.POST("/api/v1/token/credentials/:username/unlock", end.Unlock)
	r.GET("/api/v1/token/logs", end.ListLogs)
	r.GET("/api/v1/token/logs-export", end.ExportLogs)
}
