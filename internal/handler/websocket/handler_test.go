package websocket_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"net/http/httptest"

	"vls-chat/internal/domain"
	wsHandler "vls-chat/internal/handler/websocket"
	"vls-chat/internal/hub"
	"vls-chat/internal/logsink"
	"vls-chat/internal/repository"
	"vls-chat/internal/repository/mocks"
	"vls-chat/internal/service"
)

func newHandshakeServer(t *testing.T, mockStore *mocks.Store) (*httptest.Server, *service.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	auth, err := service.NewAuthService("test-secret", time.Hour, "")
	require.NoError(t, err)
	sink, err := logsink.New(t.TempDir())
	require.NoError(t, err)
	chat := service.NewChatService(mockStore, sink)
	h := hub.NewHub(chat)

	router := gin.New()
	router.GET("/chat/ws", wsHandler.NewHandler(h, auth, chat, mockStore).HandleConnection)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, auth
}

func dialWS(t *testing.T, srv *httptest.Server, token string) *gorillaws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws?token=" + token
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err, "the upgrade itself must succeed; failures arrive as close frames")
	t.Cleanup(func() { conn.Close() })
	return conn
}

func expectCloseCode(t *testing.T, conn *gorillaws.Conn, code int) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	closeErr := &gorillaws.CloseError{}
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, code, closeErr.Code)
}

func issueToken(t *testing.T, auth *service.AuthService) string {
	t.Helper()
	token, err := auth.IssueToken(domain.Identity{
		Room: "demo", UserID: "u_1", Name: "Ada", NameLower: "ada", Role: domain.RoleUser,
	})
	require.NoError(t, err)
	return token
}

func TestHandshake_BadToken(t *testing.T) {
	srv, _ := newHandshakeServer(t, new(mocks.Store))

	conn := dialWS(t, srv, "not-a-valid-token")
	expectCloseCode(t, conn, wsHandler.CloseBadToken)
}

func TestHandshake_NoLiveHold(t *testing.T) {
	mockStore := new(mocks.Store)
	mockStore.On("ConsumeHold", mock.Anything, "demo", "ada").
		Return("", repository.ErrNotFound).Once()
	srv, auth := newHandshakeServer(t, mockStore)

	conn := dialWS(t, srv, issueToken(t, auth))
	expectCloseCode(t, conn, wsHandler.CloseNameNotReserved)
	mockStore.AssertExpectations(t)
}

func TestHandshake_HoldOwnedByAnotherIdentity(t *testing.T) {
	mockStore := new(mocks.Store)
	mockStore.On("ConsumeHold", mock.Anything, "demo", "ada").
		Return("u_someone_else", nil).Once()
	srv, auth := newHandshakeServer(t, mockStore)

	conn := dialWS(t, srv, issueToken(t, auth))
	expectCloseCode(t, conn, wsHandler.CloseNameNotReserved)
	mockStore.AssertExpectations(t)
}

func TestHandshake_HoldCheckFailure(t *testing.T) {
	mockStore := new(mocks.Store)
	mockStore.On("ConsumeHold", mock.Anything, "demo", "ada").
		Return("", errors.New("connection refused")).Once()
	srv, auth := newHandshakeServer(t, mockStore)

	conn := dialWS(t, srv, issueToken(t, auth))
	expectCloseCode(t, conn, wsHandler.CloseHoldCheckFailed)
	mockStore.AssertExpectations(t)
}

func TestHandshake_HoldIsSingleUse(t *testing.T) {
	mockStore := new(mocks.Store)
	// The first handshake consumes the hold; a replay of the same token
	// finds nothing and is rejected.
	mockStore.On("ConsumeHold", mock.Anything, "demo", "ada").
		Return("u_1", nil).Once()
	mockStore.On("ConsumeHold", mock.Anything, "demo", "ada").
		Return("", repository.ErrNotFound).Once()
	mockStore.On("JoinRoom", mock.Anything, "demo", domain.UserRef{ID: "u_1", Name: "Ada"}).Return(nil).Once()
	mockStore.On("History", mock.Anything, "demo", 50).Return([]domain.Message{}, nil).Once()
	mockStore.On("LeaveRoom", mock.Anything, "demo", "u_1").Return(nil).Maybe()
	srv, auth := newHandshakeServer(t, mockStore)
	token := issueToken(t, auth)

	first := dialWS(t, srv, token)
	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := first.ReadMessage()
	require.NoError(t, err)
	var hello map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &hello))
	assert.Equal(t, "hello", hello["type"])
	assert.Equal(t, float64(1), hello["occupants"])

	second := dialWS(t, srv, token)
	expectCloseCode(t, second, wsHandler.CloseNameNotReserved)
	mockStore.AssertExpectations(t)
}

func TestHandshake_ReplaysRecentHistory(t *testing.T) {
	mockStore := new(mocks.Store)
	mockStore.On("ConsumeHold", mock.Anything, "demo", "ada").Return("u_1", nil).Once()
	mockStore.On("JoinRoom", mock.Anything, "demo", mock.AnythingOfType("domain.UserRef")).Return(nil).Once()
	// Store order is newest first; the replay must arrive oldest first.
	mockStore.On("History", mock.Anything, "demo", 50).Return([]domain.Message{
		{Type: "message", ID: "m2", Room: "demo", Text: "second", TS: 2},
		{Type: "message", ID: "m1", Room: "demo", Text: "first", TS: 1},
	}, nil).Once()
	mockStore.On("LeaveRoom", mock.Anything, "demo", "u_1").Return(nil).Maybe()
	srv, auth := newHandshakeServer(t, mockStore)

	conn := dialWS(t, srv, issueToken(t, auth))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	// The welcome sequence interleaves hello and presence before the replay;
	// read until the history payload arrives.
	var history domain.History
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var envelope struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(raw, &envelope))
		if envelope.Type != "history" {
			continue
		}
		require.NoError(t, json.Unmarshal(raw, &history))
		break
	}
	assert.Equal(t, "history", history.Type)
	require.Len(t, history.Items, 2)
	assert.Equal(t, "m1", history.Items[0].ID)
	assert.Equal(t, "m2", history.Items[1].ID)
	mockStore.AssertExpectations(t)
}
