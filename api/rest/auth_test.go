package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/amity/server/audit"
	"github.com/kasuganosora/amity/server/cache"
	"github.com/kasuganosora/amity/server/config"
	"github.com/kasuganosora/amity/server/friend"
	mw "github.com/kasuganosora/amity/server/middleware"
	"github.com/kasuganosora/amity/server/model"
	"github.com/kasuganosora/amity/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testSec = config.SecurityConfig{
	JWTSecret: "test-secret",
	JWTTTLH:   time.Hour,
}

// setupTestServer wires a full router the way main does, against an
// in-memory DB and local cache.
func setupTestServer(t *testing.T) (*gin.Engine, *gorm.DB, cache.Cache) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	c := testutil.SetupTestCache(t)
	logger, _ := zap.NewDevelopment()

	auditSvc := audit.New(db, logger)
	t.Cleanup(func() { auditSvc.Stop(context.Background()) })

	authH := NewAuthHandler(db, c, testSec)
	friendH := NewFriendHandler(friend.NewService(db, logger), auditSvc)

	r := gin.New()
	r.Use(mw.TraceID())
	api := r.Group("/api")
	{
		api.POST("/auth/login", authH.Login)
		api.POST("/auth/logout", mw.Auth(testSec, c), authH.Logout)
		api.POST("/auth/refresh", mw.Auth(testSec, c), authH.Refresh)
		api.GET("/me", mw.Auth(testSec, c), authH.Me)

		friendsG := api.Group("/friends")
		friendsG.Use(mw.Auth(testSec, c))
		friendsG.GET("", friendH.ListFriends)
		friendsG.GET("/invitations", friendH.ListInvitations)
		friendsG.POST("/invitations", friendH.Propose)
		friendsG.POST("/invitations/:id/accept", friendH.Accept)
		friendsG.POST("/invitations/:id/reject", friendH.Reject)
	}
	return r, db, c
}

func postJSON(t *testing.T, r *gin.Engine, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func getJSON(t *testing.T, r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// login registers (or logs into) an account and returns token and user id.
func login(t *testing.T, r *gin.Engine, account string) (token, userID string) {
	t.Helper()
	w := postJSON(t, r, "/api/auth/login", "", gin.H{
		"account":  account,
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	return body["token"].(string), body["user_id"].(string)
}

func TestLogin_AutoRegister(t *testing.T) {
	r, db, _ := setupTestServer(t)

	w := postJSON(t, r, "/api/auth/login", "", gin.H{
		"account":  "alice",
		"password": "secret123",
		"mail":     "alice@example.com",
		"name":     "Alice",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.NotEmpty(t, body["token"])
	assert.NotEmpty(t, body["user_id"])

	var user model.User
	require.NoError(t, db.Where("account = ?", "alice").First(&user).Error)
	assert.Equal(t, "Alice", user.Name)
	assert.Equal(t, "alice@example.com", user.Mail)
	assert.NotEqual(t, "secret123", user.PasswordHash)
}

func TestLogin_DefaultsNameToAccount(t *testing.T) {
	r, db, _ := setupTestServer(t)

	login(t, r, "bob")
	var user model.User
	require.NoError(t, db.Where("account = ?", "bob").First(&user).Error)
	assert.Equal(t, "bob", user.Name)
}

func TestLogin_WrongPassword(t *testing.T) {
	r, _, _ := setupTestServer(t)
	login(t, r, "alice")

	w := postJSON(t, r, "/api/auth/login", "", gin.H{
		"account":  "alice",
		"password": "wrongpass",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin_SecondLoginSameUser(t *testing.T) {
	r, _, _ := setupTestServer(t)
	_, id1 := login(t, r, "alice")
	_, id2 := login(t, r, "alice")
	assert.Equal(t, id1, id2)
}

func TestLogin_Banned(t *testing.T) {
	r, db, _ := setupTestServer(t)
	_, userID := login(t, r, "alice")

	require.NoError(t, db.Model(&model.User{}).
		Where("id = ?", userID).Update("status", 0).Error)

	w := postJSON(t, r, "/api/auth/login", "", gin.H{
		"account":  "alice",
		"password": "secret123",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLogin_ValidationError(t *testing.T) {
	r, _, _ := setupTestServer(t)

	w := postJSON(t, r, "/api/auth/login", "", gin.H{"account": "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, r, "/api/auth/login", "", gin.H{"account": "a", "password": "secret123"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "account shorter than 2 chars")
}

func TestLogout_InvalidatesSession(t *testing.T) {
	r, _, _ := setupTestServer(t)
	token, _ := login(t, r, "alice")

	w := postJSON(t, r, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = getJSON(t, r, "/api/me", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "token must be dead after logout")
}

func TestRefresh_RotatesToken(t *testing.T) {
	r, _, _ := setupTestServer(t)
	oldToken, _ := login(t, r, "alice")

	w := postJSON(t, r, "/api/auth/refresh", oldToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	newToken := decode(t, w)["token"].(string)
	require.NotEmpty(t, newToken)
	assert.NotEqual(t, oldToken, newToken)

	assert.Equal(t, http.StatusOK, getJSON(t, r, "/api/me", newToken).Code)
	assert.Equal(t, http.StatusUnauthorized, getJSON(t, r, "/api/me", oldToken).Code)
}

func TestMe_ReturnsProfile(t *testing.T) {
	r, _, _ := setupTestServer(t)
	token, userID := login(t, r, "alice")

	w := getJSON(t, r, "/api/me", token)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, userID, body["id"])
	assert.Equal(t, "alice", body["account"])
}

func TestMe_NoToken(t *testing.T) {
	r, _, _ := setupTestServer(t)
	w := getJSON(t, r, "/api/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMe_GarbageToken(t *testing.T) {
	r, _, _ := setupTestServer(t)
	w := getJSON(t, r, "/api/me", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
