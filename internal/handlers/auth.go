package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/easylesson/easylesson-server/internal/services"
	"github.com/easylesson/easylesson-server/pkg/crypto"
	"github.com/easylesson/easylesson-server/pkg/response"
)

// AuthHandler exposes registration, login, verification and password reset.
type AuthHandler struct {
	svc *services.AuthService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(svc *services.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"full_name" validate:"omitempty,max=128"`
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type verifyEmailRequest struct {
	UserID string `json:"user_id" validate:"required,uuid4"`
	Code   string `json:"code" validate:"required,len=6"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetVerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6"`
}

type resetConfirmRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,len=6"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

type googleLoginRequest struct {
	Code string `json:"code" validate:"required"`
}

// POST /api/register
func (h *AuthHandler) Register(c *gin.Context) {
	var body registerRequest
	if !bindAndValidate(c, &body) {
		return
	}

	user, err := h.svc.Register(requestContext(c), services.RegisterInput{
		Username: body.Username,
		Email:    body.Email,
		Password: body.Password,
		FullName: body.FullName,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"user": user})
}

// POST /api/login
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if !bindAndValidate(c, &body) {
		return
	}

	result, err := h.svc.Login(requestContext(c), services.LoginInput{
		Identifier: body.Identifier,
		Password:   body.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": result.User, "token": result.Token})
}

// POST /api/verify-email
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var body verifyEmailRequest
	if !bindAndValidate(c, &body) {
		return
	}

	result, err := h.svc.VerifyEmail(requestContext(c), body.UserID, body.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": result.User, "token": result.Token})
}

// POST /api/resend-code
func (h *AuthHandler) ResendCode(c *gin.Context) {
	var body emailRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if err := h.svc.ResendVerificationCode(requestContext(c), body.Email); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sent": true})
}

// POST /api/check-user
func (h *AuthHandler) CheckUser(c *gin.Context) {
	var body emailRequest
	if !bindAndValidate(c, &body) {
		return
	}

	check, err := h.svc.CheckUser(requestContext(c), body.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, check)
}

// POST /api/password-reset/request
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var body emailRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if err := h.svc.RequestPasswordReset(requestContext(c), body.Email); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sent": true})
}

// POST /api/password-reset/verify
func (h *AuthHandler) VerifyResetCode(c *gin.Context) {
	var body resetVerifyRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if err := h.svc.VerifyResetCode(requestContext(c), body.Email, body.Code); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"valid": true})
}

// POST /api/password-reset/confirm
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var body resetConfirmRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if err := h.svc.ResetPassword(requestContext(c), body.Email, body.Code, body.NewPassword); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reset": true})
}

// GET /api/auth/google/url
func (h *AuthHandler) GoogleAuthURL(c *gin.Context) {
	state := c.Query("state")
	if state == "" {
		generated, err := crypto.GenerateToken(16)
		if err != nil {
			response.Error(c, err)
			return
		}
		state = generated
	}

	url, err := h.svc.GoogleAuthURL(state)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"url": url, "state": state})
}

// POST /api/auth/google
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	var body googleLoginRequest
	if !bindAndValidate(c, &body) {
		return
	}

	result, err := h.svc.LoginWithGoogle(requestContext(c), body.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"user":        result.User,
		"token":       result.Token,
		"is_new_user": result.IsNewUser,
	})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.svc.GetUser(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}
