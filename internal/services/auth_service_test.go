package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/easylesson/easylesson-server/internal/auth"
	"github.com/easylesson/easylesson-server/internal/database/testutil"
	"github.com/easylesson/easylesson-server/internal/models"
	"github.com/easylesson/easylesson-server/pkg/crypto"
	apperrors "github.com/easylesson/easylesson-server/pkg/errors"
)

func newTestJWT(t *testing.T) *iauth.JWTService {
	t.Helper()

	svc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret: "test-secret",
		Issuer: "easylesson-test",
	})
	require.NoError(t, err)
	return svc
}

// seedActiveUser inserts a verified local account with the given credentials.
func seedActiveUser(t *testing.T, db *gorm.DB, username, email, password string) *models.User {
	t.Helper()

	hashed := ""
	if password != "" {
		var err error
		hashed, err = crypto.HashPassword(password)
		require.NoError(t, err)
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Password: hashed,
		IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

type fakeGoogleAuth struct {
	identity *iauth.GoogleIdentity
	err      error
}

func (f *fakeGoogleAuth) AuthCodeURL(state string) string {
	return "https://accounts.google.com/o/oauth2/v2/auth?state=" + state
}

func (f *fakeGoogleAuth) Exchange(ctx context.Context, code string) (*iauth.GoogleIdentity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

func TestAuthServiceRegisterProvisionsStarterWorkspace(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	current := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	svc, err := NewAuthService(db, newTestJWT(t), nil,
		WithAuthClock(func() time.Time { return current }))
	require.NoError(t, err)

	user, err := svc.Register(context.Background(), RegisterInput{
		Username: "ada",
		Email:    "Ada@Example.com",
		Password: "Sup3rSecret!",
		FullName: "Ada Lovelace",
	})
	require.NoError(t, err)

	require.Equal(t, "ada@example.com", user.Email)
	require.False(t, user.IsActive)
	require.NotNil(t, user.VerificationCode)
	require.Len(t, *user.VerificationCode, 6)
	require.NotNil(t, user.VerificationCodeExpiresAt)
	require.Equal(t, current.Add(15*time.Minute), *user.VerificationCodeExpiresAt)

	// Passwords are stored hashed.
	require.NotEqual(t, "Sup3rSecret!", user.Password)
	require.True(t, crypto.VerifyPassword(user.Password, "Sup3rSecret!"))

	var workspace models.Workspace
	require.NoError(t, db.First(&workspace, "created_by = ?", user.ID).Error)
	require.Equal(t, "Ada Lovelace's Workspace", workspace.Name)

	var member models.WorkspaceMember
	require.NoError(t, db.First(&member, "workspace_id = ? AND user_id = ?", workspace.ID, user.ID).Error)
	require.Equal(t, models.RoleOwner, member.Role)

	require.NotNil(t, user.ActiveWorkspaceID)
	require.Equal(t, workspace.ID, *user.ActiveWorkspaceID)
}

func TestAuthServiceRegisterConflicts(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	seedActiveUser(t, db, "taken", "taken@example.com", "password1")

	svc, err := NewAuthService(db, newTestJWT(t), nil)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterInput{
		Username: "taken",
		Email:    "fresh@example.com",
		Password: "password1",
	})
	require.ErrorIs(t, err, ErrUsernameTaken)

	_, err = svc.Register(context.Background(), RegisterInput{
		Username: "fresh",
		Email:    "taken@example.com",
		Password: "password1",
	})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestAuthServiceVerifyEmail(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	current := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	svc, err := NewAuthService(db, newTestJWT(t), nil,
		WithAuthClock(func() time.Time { return current }))
	require.NoError(t, err)

	user, err := svc.Register(context.Background(), RegisterInput{
		Username: "verify",
		Email:    "verify@example.com",
		Password: "password1",
	})
	require.NoError(t, err)
	code := *user.VerificationCode

	_, err = svc.VerifyEmail(context.Background(), user.ID, "000000")
	if code == "000000" {
		t.Skip("generated code collided with the deliberately wrong one")
	}
	require.ErrorIs(t, err, ErrInvalidVerificationCode)

	result, err := svc.VerifyEmail(context.Background(), user.ID, code)
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	require.True(t, result.User.IsActive)
	require.Nil(t, result.User.VerificationCode)

	// A verified account cannot verify again.
	_, err = svc.VerifyEmail(context.Background(), user.ID, code)
	require.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestAuthServiceVerifyEmailExpiredCode(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	current := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	svc, err := NewAuthService(db, newTestJWT(t), nil,
		WithAuthClock(func() time.Time { return current }))
	require.NoError(t, err)

	user, err := svc.Register(context.Background(), RegisterInput{
		Username: "late",
		Email:    "late@example.com",
		Password: "password1",
	})
	require.NoError(t, err)

	current = current.Add(16 * time.Minute)

	_, err = svc.VerifyEmail(context.Background(), user.ID, *user.VerificationCode)
	require.ErrorIs(t, err, ErrVerificationCodeExpired)
}

func TestAuthServiceResendVerificationCode(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	svc, err := NewAuthService(db, newTestJWT(t), nil)
	require.NoError(t, err)

	user, err := svc.Register(context.Background(), RegisterInput{
		Username: "resend",
		Email:    "resend@example.com",
		Password: "password1",
	})
	require.NoError(t, err)

	require.NoError(t, svc.ResendVerificationCode(context.Background(), user.Email))

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, "id = ?", user.ID).Error)
	require.NotNil(t, reloaded.VerificationCode)

	active := seedActiveUser(t, db, "done", "done@example.com", "password1")
	require.ErrorIs(t, svc.ResendVerificationCode(context.Background(), active.Email), ErrAlreadyVerified)

	require.ErrorIs(t, svc.ResendVerificationCode(context.Background(), "ghost@example.com"), ErrUserNotFound)
}

func TestAuthServiceLogin(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	user := seedActiveUser(t, db, "carol", "carol@example.com", "CorrectHorse1")

	svc, err := NewAuthService(db, newTestJWT(t), nil)
	require.NoError(t, err)

	// By username.
	result, err := svc.Login(context.Background(), LoginInput{Identifier: "carol", Password: "CorrectHorse1"})
	require.NoError(t, err)
	require.Equal(t, user.ID, result.User.ID)
	require.NotEmpty(t, result.Token)

	// By email, case-insensitive.
	result, err = svc.Login(context.Background(), LoginInput{Identifier: "Carol@Example.com", Password: "CorrectHorse1"})
	require.NoError(t, err)
	require.Equal(t, user.ID, result.User.ID)

	_, err = svc.Login(context.Background(), LoginInput{Identifier: "carol", Password: "wrong"})
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), LoginInput{Identifier: "nobody", Password: "whatever"})
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestAuthServiceLoginUnverified(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	svc, err := NewAuthService(db, newTestJWT(t), nil)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterInput{
		Username: "pending",
		Email:    "pending@example.com",
		Password: "password1",
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), LoginInput{Identifier: "pending", Password: "password1"})
	require.ErrorIs(t, err, apperrors.ErrAccountNotVerified)
}

func TestAuthServiceLoginRejectsGoogleOnlyAccount(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	googleID := "google-sub-1"
	user := &models.User{
		Username:     "googleonly",
		Email:        "googleonly@example.com",
		IsActive:     true,
		AuthProvider: models.AuthProviderGoogle,
		GoogleID:     &googleID,
	}
	require.NoError(t, db.Create(user).Error)

	svc, err := NewAuthService(db, newTestJWT(t), nil)
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), LoginInput{Identifier: "googleonly", Password: ""})
	require.Error(t, err)

	_, err = svc.Login(context.Background(), LoginInput{Identifier: "googleonly", Password: "anything"})
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestAuthServiceCheckUser(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	svc, err := NewAuthService(db, newTestJWT(t), nil)
	require.NoError(t, err)

	check, err := svc.CheckUser(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	require.False(t, check.Exists)
	require.False(t, check.Verified)

	seedActiveUser(t, db, "known", "known@example.com", "password1")
	check, err = svc.CheckUser(context.Background(), "known@example.com")
	require.NoError(t, err)
	require.True(t, check.Exists)
	require.True(t, check.Verified)

	pending, err := svc.Register(context.Background(), RegisterInput{
		Username: "limbo",
		Email:    "limbo@example.com",
		Password: "password1",
	})
	require.NoError(t, err)

	check, err = svc.CheckUser(context.Background(), "limbo@example.com")
	require.NoError(t, err)
	require.True(t, check.Exists)
	require.False(t, check.Verified)

	// An unverified probe re-issues the verification code.
	var reloaded models.User
	require.NoError(t, db.First(&reloaded, "id = ?", pending.ID).Error)
	require.NotNil(t, reloaded.VerificationCode)
}

func TestAuthServicePasswordResetFlow(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	current := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	svc, err := NewAuthService(db, newTestJWT(t), nil,
		WithAuthClock(func() time.Time { return current }))
	require.NoError(t, err)

	user := seedActiveUser(t, db, "reset", "reset@example.com", "OldPassword1")

	// Unknown emails get a silent success so the endpoint cannot be used to
	// enumerate accounts.
	require.NoError(t, svc.RequestPasswordReset(context.Background(), "ghost@example.com"))

	require.NoError(t, svc.RequestPasswordReset(context.Background(), user.Email))

	var reset models.PasswordReset
	require.NoError(t, db.First(&reset, "user_id = ?", user.ID).Error)
	require.Len(t, reset.Code, 6)
	require.Equal(t, current.Add(15*time.Minute), reset.ExpiresAt)

	require.NoError(t, svc.VerifyResetCode(context.Background(), user.Email, reset.Code))
	require.ErrorIs(t, svc.VerifyResetCode(context.Background(), user.Email, "xxxxxx"), ErrInvalidVerificationCode)

	require.NoError(t, svc.ResetPassword(context.Background(), user.Email, reset.Code, "NewPassword1"))

	_, err = svc.Login(context.Background(), LoginInput{Identifier: "reset", Password: "NewPassword1"})
	require.NoError(t, err)
	_, err = svc.Login(context.Background(), LoginInput{Identifier: "reset", Password: "OldPassword1"})
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	// Codes are single use.
	require.ErrorIs(t, svc.ResetPassword(context.Background(), user.Email, reset.Code, "AnotherPassword1"),
		ErrVerificationCodeExpired)
}

func TestAuthServicePasswordResetExpiredCode(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	current := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	svc, err := NewAuthService(db, newTestJWT(t), nil,
		WithAuthClock(func() time.Time { return current }))
	require.NoError(t, err)

	user := seedActiveUser(t, db, "slow", "slow@example.com", "password1")
	require.NoError(t, svc.RequestPasswordReset(context.Background(), user.Email))

	var reset models.PasswordReset
	require.NoError(t, db.First(&reset, "user_id = ?", user.ID).Error)

	current = current.Add(20 * time.Minute)
	require.ErrorIs(t, svc.VerifyResetCode(context.Background(), user.Email, reset.Code), ErrVerificationCodeExpired)
}

func TestAuthServiceGoogleDisabled(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	svc, err := NewAuthService(db, newTestJWT(t), nil)
	require.NoError(t, err)

	_, err = svc.GoogleAuthURL("state")
	require.ErrorIs(t, err, ErrGoogleAuthDisabled)

	_, err = svc.LoginWithGoogle(context.Background(), "code")
	require.ErrorIs(t, err, ErrGoogleAuthDisabled)
}

func TestAuthServiceGoogleLoginCreatesUser(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	google := &fakeGoogleAuth{identity: &iauth.GoogleIdentity{
		Subject:       "google-sub-new",
		Email:         "New.Teacher@Example.com",
		EmailVerified: true,
		Name:          "New Teacher",
		Picture:       "https://example.com/avatar.png",
	}}

	svc, err := NewAuthService(db, newTestJWT(t), nil, WithGoogleAuthenticator(google))
	require.NoError(t, err)

	url, err := svc.GoogleAuthURL("abc")
	require.NoError(t, err)
	require.Contains(t, url, "state=abc")

	result, err := svc.LoginWithGoogle(context.Background(), "auth-code")
	require.NoError(t, err)
	require.True(t, result.IsNewUser)
	require.NotEmpty(t, result.Token)

	user := result.User
	require.Equal(t, "new.teacher", user.Username)
	require.Equal(t, "new.teacher@example.com", user.Email)
	require.True(t, user.IsActive)
	require.Equal(t, models.AuthProviderGoogle, user.AuthProvider)
	require.NotNil(t, user.GoogleID)
	require.Equal(t, "google-sub-new", *user.GoogleID)
	require.Empty(t, user.Password)

	// Google signups get a starter workspace too.
	var workspace models.Workspace
	require.NoError(t, db.First(&workspace, "created_by = ?", user.ID).Error)
	require.Equal(t, "New Teacher's Workspace", workspace.Name)

	// A second login resolves the same account by google id.
	again, err := svc.LoginWithGoogle(context.Background(), "auth-code")
	require.NoError(t, err)
	require.False(t, again.IsNewUser)
	require.Equal(t, user.ID, again.User.ID)
}

func TestAuthServiceGoogleLoginLinksLocalAccount(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	svc, err := NewAuthService(db, newTestJWT(t), nil)
	require.NoError(t, err)

	local, err := svc.Register(context.Background(), RegisterInput{
		Username: "linkme",
		Email:    "linkme@example.com",
		Password: "password1",
	})
	require.NoError(t, err)
	require.False(t, local.IsActive)

	google := &fakeGoogleAuth{identity: &iauth.GoogleIdentity{
		Subject: "google-sub-link",
		Email:   "linkme@example.com",
	}}
	svc, err = NewAuthService(db, newTestJWT(t), nil, WithGoogleAuthenticator(google))
	require.NoError(t, err)

	result, err := svc.LoginWithGoogle(context.Background(), "auth-code")
	require.NoError(t, err)
	require.False(t, result.IsNewUser)
	require.Equal(t, local.ID, result.User.ID)

	// Linking activates the account since Google vouches for the email.
	var reloaded models.User
	require.NoError(t, db.First(&reloaded, "id = ?", local.ID).Error)
	require.True(t, reloaded.IsActive)
	require.NotNil(t, reloaded.GoogleID)
	require.Equal(t, "google-sub-link", *reloaded.GoogleID)
}

func TestAuthServiceGoogleLoginDerivesUniqueUsername(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	seedActiveUser(t, db, "jane", "jane@other.com", "password1")

	google := &fakeGoogleAuth{identity: &iauth.GoogleIdentity{
		Subject: "google-sub-jane",
		Email:   "jane@example.com",
	}}
	svc, err := NewAuthService(db, newTestJWT(t), nil, WithGoogleAuthenticator(google))
	require.NoError(t, err)

	result, err := svc.LoginWithGoogle(context.Background(), "auth-code")
	require.NoError(t, err)
	require.Equal(t, "jane1", result.User.Username)
}
