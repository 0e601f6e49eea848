package http_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"vls-chat/internal/domain"
	httpHandler "vls-chat/internal/handler/http"
	"vls-chat/internal/middleware"
	"vls-chat/internal/repository/mocks"
)

func newAuditRouter(mockStore *mocks.Store, ident domain.Identity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	// Stand in for the auth middleware; these tests exercise the handler.
	router.GET("/chat/api/admin/audit", func(c *gin.Context) {
		c.Set(middleware.IdentityKey, ident)
	}, httpHandler.NewAuditHandler(mockStore).Audit)
	return router
}

func adminIdentity() domain.Identity {
	return domain.Identity{Room: "demo", UserID: "u_admin", Name: "Root", NameLower: "root", Role: domain.RoleAdmin}
}

func TestAuditHandler_DefaultsToCallerRoom(t *testing.T) {
	mockStore := new(mocks.Store)
	mockStore.On("Audit", mock.Anything, "demo", 200).
		Return([]domain.AuditEntry{{Action: "ban", By: "u_admin", TS: 1}}, nil).Once()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/chat/api/admin/audit", nil)
	newAuditRouter(mockStore, adminIdentity()).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"items"`)
	assert.Contains(t, w.Body.String(), `"ban"`)
	mockStore.AssertExpectations(t)
}

func TestAuditHandler_FallsBackToDemoRoom(t *testing.T) {
	mockStore := new(mocks.Store)
	mockStore.On("Audit", mock.Anything, "demo", 200).
		Return([]domain.AuditEntry{}, nil).Once()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	// No identity in the context and no room in the query.
	router.GET("/chat/api/admin/audit", httpHandler.NewAuditHandler(mockStore).Audit)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/chat/api/admin/audit", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	mockStore.AssertExpectations(t)
}

func TestAuditHandler_RoomAndLimitFromQuery(t *testing.T) {
	mockStore := new(mocks.Store)
	mockStore.On("Audit", mock.Anything, "other", 25).
		Return([]domain.AuditEntry{}, nil).Once()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/chat/api/admin/audit?room=other&limit=25", nil)
	newAuditRouter(mockStore, adminIdentity()).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	mockStore.AssertExpectations(t)
}

func TestAuditHandler_ClampsLimit(t *testing.T) {
	cases := []struct {
		query string
		want  int
	}{
		{"limit=0", 1},
		{"limit=-3", 1},
		{"limit=9999", 500},
		{"limit=banana", 200},
	}
	for _, tc := range cases {
		mockStore := new(mocks.Store)
		mockStore.On("Audit", mock.Anything, "demo", tc.want).
			Return([]domain.AuditEntry{}, nil).Once()

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/chat/api/admin/audit?"+tc.query, nil)
		newAuditRouter(mockStore, adminIdentity()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code, tc.query)
		mockStore.AssertExpectations(t)
	}
}

func TestRequireAdmin_RejectsPlainUsers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	user := domain.Identity{Room: "demo", UserID: "u_1", Name: "Ada", NameLower: "ada", Role: domain.RoleUser}
	router.GET("/guarded", func(c *gin.Context) {
		c.Set(middleware.IdentityKey, user)
	}, middleware.RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/guarded", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
