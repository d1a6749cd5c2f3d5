// Package testutil provides an in-process HTTP environment for handler tests:
// a real router wired against an in-memory database.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/easylesson/easylesson-server/internal/api"
	"github.com/easylesson/easylesson-server/internal/app"
	iauth "github.com/easylesson/easylesson-server/internal/auth"
	dbtestutil "github.com/easylesson/easylesson-server/internal/database/testutil"
	"github.com/easylesson/easylesson-server/internal/models"
	"github.com/easylesson/easylesson-server/internal/services"
	"github.com/easylesson/easylesson-server/pkg/response"
)

// Env bundles a router, its database and the JWT service used to mint tokens.
type Env struct {
	t      *testing.T
	DB     *gorm.DB
	JWT    *iauth.JWTService
	Router *gin.Engine
}

// Option customises the test environment.
type Option func(*options)

type options struct {
	google services.GoogleAuthenticator
}

// WithGoogle wires a (fake) Google authenticator into the environment.
func WithGoogle(google services.GoogleAuthenticator) Option {
	return func(o *options) {
		o.google = google
	}
}

// NewEnv builds a fully wired router backed by an isolated in-memory database.
func NewEnv(t *testing.T, opts ...Option) *Env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	db := dbtestutil.MustOpenTestDB(t, dbtestutil.WithAutoMigrate())

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret: "handler-test-secret",
		Issuer: "easylesson-test",
	})
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.Monitoring.Health.Enabled = true
	cfg.Auth.Verification.CodeTTL = 15 * time.Minute

	router, err := api.NewRouter(api.Dependencies{
		DB:     db,
		JWT:    jwt,
		Config: cfg,
		Google: o.google,
	})
	require.NoError(t, err)

	return &Env{t: t, DB: db, JWT: jwt, Router: router}
}

// Request performs an in-process HTTP request. A non-empty token is sent as a
// bearer credential.
func (e *Env) Request(method, path string, payload any, token string) *httptest.ResponseRecorder {
	e.t.Helper()

	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(e.t, err)
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// APIResponse mirrors the wire envelope with the data kept raw for re-decoding.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard envelope from a recorded response.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()

	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals raw envelope data into dest.
func DecodeInto(t *testing.T, raw json.RawMessage, dest any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, dest))
}

// RegisterAndVerify walks a user through the register and verify-email
// endpoints and returns the account with a usable access token.
func (e *Env) RegisterAndVerify(username, email, password string) (*models.User, string) {
	e.t.Helper()

	w := e.Request(http.MethodPost, "/api/register", map[string]string{
		"username":  username,
		"email":     email,
		"password":  password,
		"full_name": username,
	}, "")
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())

	var user models.User
	require.NoError(e.t, e.DB.First(&user, "email = ?", email).Error)
	require.NotNil(e.t, user.VerificationCode)

	w = e.Request(http.MethodPost, "/api/verify-email", map[string]string{
		"user_id": user.ID,
		"code":    *user.VerificationCode,
	}, "")
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())

	var result struct {
		Token string `json:"token"`
	}
	DecodeInto(e.t, DecodeResponse(e.t, w).Data, &result)
	require.NotEmpty(e.t, result.Token)

	require.NoError(e.t, e.DB.First(&user, "id = ?", user.ID).Error)
	return &user, result.Token
}
