package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/easylesson/easylesson-server/internal/auth"
	"github.com/easylesson/easylesson-server/internal/models"
	"github.com/easylesson/easylesson-server/pkg/crypto"
	apperrors "github.com/easylesson/easylesson-server/pkg/errors"
	"github.com/easylesson/easylesson-server/pkg/logger"
	"github.com/easylesson/easylesson-server/pkg/mail"
	"github.com/easylesson/easylesson-server/pkg/metrics"
)

const (
	defaultCodeTTL         = 15 * time.Minute
	verificationCodeDigits = 6
	maxUsernameDerivations = 100
)

var (
	// ErrUserNotFound indicates no account matches the provided identifier.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrUsernameTaken signals the requested username is already registered.
	ErrUsernameTaken = apperrors.NewConflict("USERNAME_TAKEN", "Username is already taken")
	// ErrEmailTaken signals the requested email is already registered.
	ErrEmailTaken = apperrors.NewConflict("EMAIL_TAKEN", "Email is already registered")
	// ErrAlreadyVerified signals the account was verified previously.
	ErrAlreadyVerified = apperrors.NewConflict("ALREADY_VERIFIED", "Account is already verified")
	// ErrInvalidVerificationCode indicates the submitted code does not match.
	ErrInvalidVerificationCode = apperrors.New("INVALID_CODE", "Verification code is invalid", http.StatusBadRequest)
	// ErrVerificationCodeExpired indicates the code matched but is past its lifetime.
	ErrVerificationCodeExpired = apperrors.New("CODE_EXPIRED", "Verification code has expired", http.StatusGone)
	// ErrGoogleAuthDisabled indicates Google sign-in is not configured.
	ErrGoogleAuthDisabled = apperrors.New("GOOGLE_AUTH_DISABLED", "Google sign-in is not available", http.StatusServiceUnavailable)
)

// GoogleAuthenticator abstracts the Google OAuth code exchange for testing.
type GoogleAuthenticator interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GoogleIdentity, error)
}

// RegisterInput captures a new local account registration.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName string
}

// LoginInput identifies an account by username or email plus password.
type LoginInput struct {
	Identifier string
	Password   string
}

// AuthResult bundles an authenticated user with an issued access token.
type AuthResult struct {
	User      *models.User
	Token     string
	IsNewUser bool
}

// UserCheck reports whether an account exists for an email and whether it has
// completed verification.
type UserCheck struct {
	Exists   bool `json:"exists"`
	Verified bool `json:"verified"`
}

// AuthOption customises AuthService behaviour.
type AuthOption func(*AuthService)

// WithAuthClock injects a custom clock primarily for testing.
func WithAuthClock(clock func() time.Time) AuthOption {
	return func(s *AuthService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithCodeTTL overrides the verification and reset code lifetime.
func WithCodeTTL(d time.Duration) AuthOption {
	return func(s *AuthService) {
		if d > 0 {
			s.codeTTL = d
		}
	}
}

// WithGoogleAuthenticator wires the Google OAuth provider.
func WithGoogleAuthenticator(google GoogleAuthenticator) AuthOption {
	return func(s *AuthService) {
		s.google = google
	}
}

// AuthService implements registration, login, email verification, password
// reset and Google sign-in.
type AuthService struct {
	db      *gorm.DB
	jwt     *auth.JWTService
	mailer  mail.Mailer
	google  GoogleAuthenticator
	codeTTL time.Duration
	now     func() time.Time
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(db *gorm.DB, jwtService *auth.JWTService, mailer mail.Mailer, opts ...AuthOption) (*AuthService, error) {
	if db == nil {
		return nil, errors.New("auth service: db is required")
	}
	if jwtService == nil {
		return nil, errors.New("auth service: jwt service is required")
	}

	service := &AuthService{
		db:      db,
		jwt:     jwtService,
		mailer:  mailer,
		codeTTL: defaultCodeTTL,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Register creates an inactive local account, provisions its starter workspace
// and dispatches a verification code.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if username == "" || email == "" || input.Password == "" {
		return nil, apperrors.NewBadRequest("username, email and password are required")
	}

	if err := s.checkAvailability(ctx, username, email); err != nil {
		return nil, err
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth service: hash password: %w", err)
	}

	code, err := crypto.GenerateNumericCode(verificationCodeDigits)
	if err != nil {
		return nil, fmt.Errorf("auth service: generate code: %w", err)
	}

	now := s.now()
	expiresAt := now.Add(s.codeTTL)

	user := &models.User{
		Username:                  username,
		Email:                     email,
		Password:                  hashed,
		FullName:                  strings.TrimSpace(input.FullName),
		AuthProvider:              models.AuthProviderLocal,
		IsActive:                  false,
		VerificationCode:          &code,
		VerificationCodeExpiresAt: &expiresAt,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			if isUniqueConstraintError(err) {
				return registrationConflict(err)
			}
			return fmt.Errorf("auth service: create user: %w", err)
		}
		return s.provisionStarterWorkspace(tx, user, now)
	})
	if err != nil {
		return nil, err
	}

	s.sendVerificationEmail(ctx, user, code)

	return user, nil
}

// VerifyEmail activates an account when the submitted code matches and has not
// expired, then issues an access token.
func (s *AuthService) VerifyEmail(ctx context.Context, userID, code string) (*AuthResult, error) {
	ctx = ensureContext(ctx)

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.IsActive {
		return nil, ErrAlreadyVerified
	}

	if user.VerificationCode == nil || *user.VerificationCode != strings.TrimSpace(code) {
		return nil, ErrInvalidVerificationCode
	}
	if user.VerificationCodeExpiresAt == nil || !s.now().Before(*user.VerificationCodeExpiresAt) {
		return nil, ErrVerificationCodeExpired
	}

	updates := map[string]any{
		"is_active":                    true,
		"verification_code":            nil,
		"verification_code_expires_at": nil,
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("auth service: activate user: %w", err)
	}
	user.IsActive = true
	user.VerificationCode = nil
	user.VerificationCodeExpiresAt = nil

	token, err := s.jwt.GenerateAccessToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("auth service: issue token: %w", err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// ResendVerificationCode replaces the pending code for an unverified account
// and emails the new one.
func (s *AuthService) ResendVerificationCode(ctx context.Context, email string) error {
	ctx = ensureContext(ctx)

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}

	if user.IsActive {
		return ErrAlreadyVerified
	}

	code, err := crypto.GenerateNumericCode(verificationCodeDigits)
	if err != nil {
		return fmt.Errorf("auth service: generate code: %w", err)
	}

	expiresAt := s.now().Add(s.codeTTL)
	updates := map[string]any{
		"verification_code":            code,
		"verification_code_expires_at": expiresAt,
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return fmt.Errorf("auth service: store code: %w", err)
	}

	s.sendVerificationEmail(ctx, user, code)
	return nil
}

// Login authenticates a local account by username or email.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	ctx = ensureContext(ctx)

	identifier := strings.TrimSpace(input.Identifier)
	if identifier == "" || input.Password == "" {
		return nil, apperrors.NewBadRequest("identifier and password are required")
	}

	var user models.User
	err := s.db.WithContext(ctx).
		Where("username = ? OR email = ?", identifier, strings.ToLower(identifier)).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.AuthAttempts.WithLabelValues("local", "failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("auth service: load user: %w", err)
	}

	// Google-only accounts have no password hash and cannot use local login.
	if user.Password == "" || !crypto.VerifyPassword(user.Password, input.Password) {
		metrics.AuthAttempts.WithLabelValues("local", "failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	if !user.IsActive {
		metrics.AuthAttempts.WithLabelValues("local", "failure").Inc()
		return nil, apperrors.ErrAccountNotVerified
	}

	token, err := s.jwt.GenerateAccessToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("auth service: issue token: %w", err)
	}

	metrics.AuthAttempts.WithLabelValues("local", "success").Inc()
	return &AuthResult{User: &user, Token: token}, nil
}

// CheckUser probes whether an account exists for the email and whether it has
// verified. Unverified accounts get a fresh code re-issued so the client can
// steer the user back into the verification flow.
func (s *AuthService) CheckUser(ctx context.Context, email string) (*UserCheck, error) {
	ctx = ensureContext(ctx)

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return &UserCheck{}, nil
		}
		return nil, err
	}

	check := &UserCheck{Exists: true, Verified: user.IsActive}
	if user.IsActive {
		return check, nil
	}

	code, err := crypto.GenerateNumericCode(verificationCodeDigits)
	if err != nil {
		return nil, fmt.Errorf("auth service: generate code: %w", err)
	}
	expiresAt := s.now().Add(s.codeTTL)
	updates := map[string]any{
		"verification_code":            code,
		"verification_code_expires_at": expiresAt,
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("auth service: store code: %w", err)
	}
	s.sendVerificationEmail(ctx, user, code)

	return check, nil
}

// GetUser loads a user by identifier.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("auth service: load user: %w", err)
	}
	return &user, nil
}

// RequestPasswordReset issues a reset code for a local account. The response is
// intentionally identical whether or not the email exists.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	ctx = ensureContext(ctx)

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return err
	}

	code, err := crypto.GenerateNumericCode(verificationCodeDigits)
	if err != nil {
		return fmt.Errorf("auth service: generate code: %w", err)
	}

	reset := &models.PasswordReset{
		UserID:    user.ID,
		Code:      code,
		ExpiresAt: s.now().Add(s.codeTTL),
	}
	if err := s.db.WithContext(ctx).Create(reset).Error; err != nil {
		return fmt.Errorf("auth service: create reset: %w", err)
	}

	s.send(ctx, mail.Message{
		To:        user.Email,
		ToName:    user.FullName,
		Subject:   "Reset your EasyLesson password",
		PlainBody: fmt.Sprintf("Your password reset code is %s. It expires in %d minutes.", code, int(s.codeTTL.Minutes())),
	})

	return nil
}

// VerifyResetCode checks a reset code without consuming it.
func (s *AuthService) VerifyResetCode(ctx context.Context, email, code string) error {
	ctx = ensureContext(ctx)

	_, _, err := s.findValidReset(ctx, email, code)
	return err
}

// ResetPassword consumes a valid reset code and replaces the password.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	ctx = ensureContext(ctx)

	if newPassword == "" {
		return apperrors.NewBadRequest("new password is required")
	}

	user, reset, err := s.findValidReset(ctx, email, code)
	if err != nil {
		return err
	}

	hashed, err := crypto.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("auth service: hash password: %w", err)
	}

	now := s.now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Update("password", hashed).Error; err != nil {
			return fmt.Errorf("auth service: update password: %w", err)
		}
		if err := tx.Model(reset).Update("used_at", now).Error; err != nil {
			return fmt.Errorf("auth service: consume reset: %w", err)
		}
		return nil
	})
}

// GoogleAuthURL builds the Google consent page URL for the given state.
func (s *AuthService) GoogleAuthURL(state string) (string, error) {
	if s.google == nil {
		return "", ErrGoogleAuthDisabled
	}
	return s.google.AuthCodeURL(state), nil
}

// LoginWithGoogle exchanges an authorization code and signs the user in,
// linking or creating the account as needed.
func (s *AuthService) LoginWithGoogle(ctx context.Context, code string) (*AuthResult, error) {
	ctx = ensureContext(ctx)

	if s.google == nil {
		return nil, ErrGoogleAuthDisabled
	}

	identity, err := s.google.Exchange(ctx, code)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("google", "failure").Inc()
		return nil, apperrors.New("GOOGLE_AUTH_FAILED", "Google sign-in failed", http.StatusUnauthorized).WithInternal(err)
	}

	user, isNew, err := s.resolveGoogleUser(ctx, identity)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("google", "failure").Inc()
		return nil, err
	}

	token, err := s.jwt.GenerateAccessToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("auth service: issue token: %w", err)
	}

	metrics.AuthAttempts.WithLabelValues("google", "success").Inc()
	return &AuthResult{User: user, Token: token, IsNewUser: isNew}, nil
}

func (s *AuthService) resolveGoogleUser(ctx context.Context, identity *auth.GoogleIdentity) (*models.User, bool, error) {
	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if email == "" {
		return nil, false, apperrors.NewBadRequest("google account has no email address")
	}

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "google_id = ?", identity.Subject).Error
	if err == nil {
		return &user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("auth service: load google user: %w", err)
	}

	// Link an existing local account registered with the same email.
	err = s.db.WithContext(ctx).First(&user, "email = ?", email).Error
	if err == nil {
		updates := map[string]any{"google_id": identity.Subject, "is_active": true}
		if user.Avatar == "" && identity.Picture != "" {
			updates["avatar"] = identity.Picture
		}
		if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
			return nil, false, fmt.Errorf("auth service: link google account: %w", err)
		}
		user.GoogleID = &identity.Subject
		user.IsActive = true
		return &user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("auth service: load user by email: %w", err)
	}

	username, err := s.deriveUsername(ctx, email)
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	newUser := &models.User{
		Username:     username,
		Email:        email,
		FullName:     identity.Name,
		Avatar:       identity.Picture,
		IsActive:     true,
		AuthProvider: models.AuthProviderGoogle,
		GoogleID:     &identity.Subject,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(newUser).Error; err != nil {
			if isUniqueConstraintError(err) {
				return registrationConflict(err)
			}
			return fmt.Errorf("auth service: create google user: %w", err)
		}
		return s.provisionStarterWorkspace(tx, newUser, now)
	})
	if err != nil {
		return nil, false, err
	}

	return newUser, true, nil
}

// deriveUsername builds a unique username from the email local part, appending
// a counter when the plain form is taken.
func (s *AuthService) deriveUsername(ctx context.Context, email string) (string, error) {
	base := strings.SplitN(email, "@", 2)[0]
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		default:
			return -1
		}
	}, strings.ToLower(base))
	if base == "" {
		base = "user"
	}

	candidate := base
	for i := 1; i <= maxUsernameDerivations; i++ {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).
			Where("username = ?", candidate).
			Count(&count).Error; err != nil {
			return "", fmt.Errorf("auth service: derive username: %w", err)
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}

	return "", apperrors.ErrInternalServer.WithInternal(fmt.Errorf("username derivation exhausted for %q", base))
}

// provisionStarterWorkspace creates the default workspace a fresh account
// lands in and marks it active.
func (s *AuthService) provisionStarterWorkspace(tx *gorm.DB, user *models.User, now time.Time) error {
	name := strings.TrimSpace(user.FullName)
	if name == "" {
		name = user.Username
	}

	workspace := &models.Workspace{
		Name:      fmt.Sprintf("%s's Workspace", name),
		CreatedBy: user.ID,
	}
	if err := tx.Create(workspace).Error; err != nil {
		return fmt.Errorf("auth service: create starter workspace: %w", err)
	}

	member := &models.WorkspaceMember{
		WorkspaceID: workspace.ID,
		UserID:      user.ID,
		Role:        models.RoleOwner,
		JoinedAt:    now,
	}
	if err := tx.Create(member).Error; err != nil {
		return fmt.Errorf("auth service: create starter membership: %w", err)
	}

	if err := tx.Model(user).Update("active_workspace_id", workspace.ID).Error; err != nil {
		return fmt.Errorf("auth service: set active workspace: %w", err)
	}
	user.ActiveWorkspaceID = &workspace.ID

	return nil
}

func (s *AuthService) findByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("auth service: load user: %w", err)
	}
	return &user, nil
}

func (s *AuthService) findValidReset(ctx context.Context, email, code string) (*models.User, *models.PasswordReset, error) {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil, apperrors.NewBadRequest("reset code is required")
	}

	var reset models.PasswordReset
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND code = ?", user.ID, code).
		Order("created_at DESC").
		First(&reset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrInvalidVerificationCode
	}
	if err != nil {
		return nil, nil, fmt.Errorf("auth service: load reset: %w", err)
	}

	if !reset.Valid(s.now()) {
		return nil, nil, ErrVerificationCodeExpired
	}

	return user, &reset, nil
}

func (s *AuthService) sendVerificationEmail(ctx context.Context, user *models.User, code string) {
	s.send(ctx, mail.Message{
		To:        user.Email,
		ToName:    user.FullName,
		Subject:   "Verify your EasyLesson account",
		PlainBody: fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(s.codeTTL.Minutes())),
	})
}

// send delivers email best-effort. Failures are logged and never surfaced so
// outbound mail can never roll back or fail an auth flow.
func (s *AuthService) send(ctx context.Context, msg mail.Message) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.Send(ctx, msg); err != nil && !errors.Is(err, mail.ErrMailDisabled) {
		logger.WithModule("services.auth").Warn("send email failed",
			zap.String("to", msg.To),
			zap.Error(err))
	}
}

func (s *AuthService) checkAvailability(ctx context.Context, username, email string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ?", username).
		Count(&count).Error; err != nil {
		return fmt.Errorf("auth service: check username: %w", err)
	}
	if count > 0 {
		return ErrUsernameTaken
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", email).
		Count(&count).Error; err != nil {
		return fmt.Errorf("auth service: check email: %w", err)
	}
	if count > 0 {
		return ErrEmailTaken
	}
	return nil
}
