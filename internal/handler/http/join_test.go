package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	httpHandler "vls-chat/internal/handler/http"
	"vls-chat/internal/repository/mocks"
	"vls-chat/internal/service"
)

func newJoinRouter(t *testing.T, mockStore *mocks.Store) (*gin.Engine, *service.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	auth, err := service.NewAuthService("test-secret", time.Hour, "")
	require.NoError(t, err)
	joinService := service.NewJoinService(mockStore, auth, time.Minute)

	router := gin.New()
	router.POST("/chat/api/join", httpHandler.NewJoinHandler(joinService).Join)
	return router, auth
}

func postJoin(router *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/chat/api/join", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestJoinHandler_Success(t *testing.T) {
	mockStore := new(mocks.Store)
	mockStore.On("CreateHold", mock.Anything, "lobby", "ada", mock.AnythingOfType("string"), time.Minute).
		Return(true, nil).Once()
	router, auth := newJoinRouter(t, mockStore)

	w := postJoin(router, `{"room":"lobby","displayName":"Ada"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp httpHandler.JoinResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "user", resp.Role)

	ident, err := auth.VerifyToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "lobby", ident.Room)
	assert.Equal(t, "Ada", ident.Name)

	mockStore.AssertExpectations(t)
}

func TestJoinHandler_MissingDisplayName(t *testing.T) {
	router, _ := newJoinRouter(t, new(mocks.Store))

	w := postJoin(router, `{"room":"lobby"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJoinHandler_InvalidName(t *testing.T) {
	router, _ := newJoinRouter(t, new(mocks.Store))

	w := postJoin(router, `{"room":"lobby","displayName":"<script>"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid")
}

func TestJoinHandler_NameTaken(t *testing.T) {
	mockStore := new(mocks.Store)
	mockStore.On("CreateHold", mock.Anything, "lobby", "ada", mock.AnythingOfType("string"), time.Minute).
		Return(false, nil).Once()
	router, _ := newJoinRouter(t, mockStore)

	w := postJoin(router, `{"room":"lobby","displayName":"Ada"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already held")
}
