package http_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"vls-chat/internal/domain"
	httpHandler "vls-chat/internal/handler/http"
	"vls-chat/internal/middleware"
	"vls-chat/internal/repository/mocks"
	"vls-chat/internal/service"
)

// newRosterRouter wires the roster routes the way the application does:
// behind bearer auth and the admin gate.
func newRosterRouter(t *testing.T, mockStore *mocks.Store) (*gin.Engine, *service.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	auth, err := service.NewAuthService("test-secret", time.Hour, "")
	require.NoError(t, err)

	rosterHandler := httpHandler.NewRosterHandler(mockStore)
	router := gin.New()
	guarded := router.Group("/chat/api").Use(middleware.Auth(auth), middleware.RequireAdmin())
	{
		guarded.GET("/rooms", rosterHandler.Rooms)
		guarded.GET("/rooms/:room/users", rosterHandler.Users)
	}
	return router, auth
}

func getWithToken(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestRosterRoutes_RejectAnonymous(t *testing.T) {
	mockStore := new(mocks.Store)
	router, _ := newRosterRouter(t, mockStore)

	for _, path := range []string{"/chat/api/rooms", "/chat/api/rooms/demo/users"} {
		w := getWithToken(router, path, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
	mockStore.AssertNotCalled(t, "Rooms", mock.Anything)
	mockStore.AssertNotCalled(t, "RoomUsers", mock.Anything, mock.Anything)
}

func TestRosterRoutes_RejectPlainUsers(t *testing.T) {
	mockStore := new(mocks.Store)
	router, auth := newRosterRouter(t, mockStore)

	token, err := auth.IssueToken(domain.Identity{Room: "demo", UserID: "u_1", Name: "Ada", NameLower: "ada", Role: domain.RoleUser})
	require.NoError(t, err)

	for _, path := range []string{"/chat/api/rooms", "/chat/api/rooms/demo/users"} {
		w := getWithToken(router, path, token)
		assert.Equal(t, http.StatusForbidden, w.Code, path)
	}
	mockStore.AssertNotCalled(t, "Rooms", mock.Anything)
}

func TestRosterRoutes_ServeAdmins(t *testing.T) {
	mockStore := new(mocks.Store)
	mockStore.On("Rooms", mock.Anything).
		Return([]domain.RoomInfo{{Name: "demo", Occupants: 2, SinceTS: 1, Slow: "off"}}, nil).Once()
	mockStore.On("RoomUsers", mock.Anything, "demo").
		Return([]domain.UserInfo{{ID: "u_1", Name: "Ada", Msg: 3}}, nil).Once()
	router, auth := newRosterRouter(t, mockStore)

	token, err := auth.IssueToken(domain.Identity{Room: "demo", UserID: "u_root", Name: "Root", NameLower: "root", Role: domain.RoleAdmin})
	require.NoError(t, err)

	w := getWithToken(router, "/chat/api/rooms", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"demo"`)

	w = getWithToken(router, "/chat/api/rooms/demo/users", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"Ada"`)

	mockStore.AssertExpectations(t)
}
