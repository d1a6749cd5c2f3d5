package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/easylesson/easylesson-server/internal/auth"
	"github.com/easylesson/easylesson-server/internal/database/testutil"
	"github.com/easylesson/easylesson-server/internal/models"
)

func newAuthTestRouter(t *testing.T) (*gin.Engine, *iauth.JWTService, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret", Issuer: "easylesson-test"})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/protected", Auth(jwt, db), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(CtxUserIDKey)})
	})

	return r, jwt, db
}

func doRequest(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddlewareRejectsMissingOrMalformedHeader(t *testing.T) {
	r, _, _ := newAuthTestRouter(t)

	require.Equal(t, http.StatusUnauthorized, doRequest(r, "").Code)
	require.Equal(t, http.StatusUnauthorized, doRequest(r, "Token abc").Code)
	require.Equal(t, http.StatusUnauthorized, doRequest(r, "Bearer not-a-jwt").Code)
}

func TestAuthMiddlewareRejectsUnknownOrInactiveUser(t *testing.T) {
	r, jwt, db := newAuthTestRouter(t)

	// Valid token for a user that does not exist.
	token, err := jwt.GenerateAccessToken("ghost-user")
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, doRequest(r, "Bearer "+token).Code)

	// Deactivated accounts are rejected even with a valid token.
	user := &models.User{Username: "inactive", Email: "inactive@example.com", IsActive: false}
	require.NoError(t, db.Create(user).Error)

	token, err = jwt.GenerateAccessToken(user.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, doRequest(r, "Bearer "+token).Code)
}

func TestAuthMiddlewareAcceptsActiveUser(t *testing.T) {
	r, jwt, db := newAuthTestRouter(t)

	user := &models.User{Username: "active", Email: "active@example.com", IsActive: true}
	require.NoError(t, db.Create(user).Error)

	token, err := jwt.GenerateAccessToken(user.ID)
	require.NoError(t, err)

	w := doRequest(r, "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), user.ID)
}
