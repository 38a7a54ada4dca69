package rest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kasuganosora/amity/server/model"
	"github.com/kasuganosora/amity/server/scheduler"
	"github.com/kasuganosora/amity/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testAdminKey = "admin-test-key"

func setupAdminServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	logger, _ := zap.NewDevelopment()
	sched := scheduler.New(logger)
	t.Cleanup(sched.Stop)
	sched.AddTicker("audit_prune", time.Hour, func() {})

	h := NewAdminHandler(db, sched, logger)
	r := gin.New()
	adminG := r.Group("/api/admin")
	adminG.Use(AdminAuth(testAdminKey))
	adminG.GET("/metrics", h.Metrics)
	adminG.POST("/users/:id/ban", h.BanUser)
	adminG.GET("/scheduler", h.ListSchedulerTasks)
	return r, db
}

func adminReq(t *testing.T, r *gin.Engine, method, path, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set("X-Admin-Key", key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminAuth_MissingKey(t *testing.T) {
	r, _ := setupAdminServer(t)
	w := adminReq(t, r, http.MethodGet, "/api/admin/metrics", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuth_WrongKey(t *testing.T) {
	r, _ := setupAdminServer(t)
	w := adminReq(t, r, http.MethodGet, "/api/admin/metrics", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuth_EmptyConfiguredKeyDisablesRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", AdminAuth(""), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := adminReq(t, r, http.MethodGet, "/x", "anything")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetrics(t *testing.T) {
	r, db := setupAdminServer(t)

	a := uuid.New()
	b := uuid.New()
	require.NoError(t, db.Create(&model.User{ID: a, Account: "alice", Status: 1}).Error)
	require.NoError(t, db.Create(&model.User{ID: b, Account: "bob", Status: 1}).Error)
	require.NoError(t, db.Create(&model.FriendInvitation{
		RequestorID: a, AddresseeID: b, Status: model.InviteStatusPending,
	}).Error)

	w := adminReq(t, r, http.MethodGet, "/api/admin/metrics", testAdminKey)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 2, body["users"])
	assert.EqualValues(t, 1, body["invitations"])
	assert.EqualValues(t, 1, body["pending_invitations"])
	assert.EqualValues(t, 0, body["friendships"])
}

func TestBanUser(t *testing.T) {
	r, db := setupAdminServer(t)

	u := &model.User{Account: "alice", Status: 1}
	require.NoError(t, db.Create(u).Error)

	path := "/api/admin/users/" + u.ID.String() + "/ban"
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"ban": true}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Key", testAdminKey)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var got model.User
	require.NoError(t, db.First(&got, "id = ?", u.ID).Error)
	assert.Equal(t, 0, got.Status)

	// Unban: no body defaults to ban=false.
	w = adminReq(t, r, http.MethodPost, path, testAdminKey)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, db.First(&got, "id = ?", u.ID).Error)
	assert.Equal(t, 1, got.Status)
}

func TestBanUser_NotFound(t *testing.T) {
	r, _ := setupAdminServer(t)
	w := adminReq(t, r, http.MethodPost, "/api/admin/users/"+uuid.NewString()+"/ban", testAdminKey)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBanUser_InvalidID(t *testing.T) {
	r, _ := setupAdminServer(t)
	w := adminReq(t, r, http.MethodPost, "/api/admin/users/nope/ban", testAdminKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListSchedulerTasks(t *testing.T) {
	r, _ := setupAdminServer(t)
	w := adminReq(t, r, http.MethodGet, "/api/admin/scheduler", testAdminKey)
	require.Equal(t, http.StatusOK, w.Code)
	tasks := decode(t, w)["tasks"].([]interface{})
	assert.Contains(t, tasks, "audit_prune")
}
