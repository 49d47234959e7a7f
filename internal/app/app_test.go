package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/messaging-api/internal/config"
	"github.com/jwalitptl/messaging-api/internal/model"
	"github.com/jwalitptl/messaging-api/internal/repository/memory"
	"github.com/jwalitptl/messaging-api/pkg/logger"
	"github.com/jwalitptl/messaging-api/pkg/security"
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type client struct {
	t *testing.T
	h http.Handler
}

func (c client) do(method, path, token string, body interface{}) (int, envelope) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "/api/v1"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.h.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func decode(t *testing.T, env envelope, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Storage.Driver = "memory"
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.Issuer = "messaging-api"
	cfg.JWT.ExpiryHours = 1
	cfg.Pipeline.HistoryPolicy = "content"
	cfg.Cache.UnreadTTL = time.Minute
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.Messages = 5
	cfg.RateLimit.Window = time.Minute
	cfg.RateLimit.AuthPerMinute = 60
	cfg.RateLimit.AuthBurst = 10
	cfg.Monitoring.Enabled = true
	cfg.Monitoring.MetricsPath = "/metrics"
	return cfg
}

type fixture struct {
	client
	app *App
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	a, err := New(testConfig(), memory.NewStore(), logger.Nop(), Options{
		Hasher: security.NewBcryptHasher(bcrypt.MinCost),
	})
	require.NoError(t, err)
	return &fixture{client: client{t: t, h: a.Handler()}, app: a}
}

func (f *fixture) register(name string) model.User {
	f.t.Helper()
	code, env := f.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": name,
		"email":    name + "@example.com",
		"password": "password123",
	})
	require.Equal(f.t, http.StatusCreated, code, env.Message)
	var u model.User
	decode(f.t, env, &u)
	return u
}

func (f *fixture) login(name string) string {
	f.t.Helper()
	code, env := f.do(http.MethodPost, "/auth/login", "", map[string]string{
		"username": name,
		"password": "password123",
	})
	require.Equal(f.t, http.StatusOK, code, env.Message)
	var tok model.TokenResponse
	decode(f.t, env, &tok)
	require.NotEmpty(f.t, tok.AccessToken)
	return tok.AccessToken
}

func (f *fixture) unreadCount(token string) int64 {
	f.t.Helper()
	code, env := f.do(http.MethodGet, "/messages/unread/count", token, nil)
	require.Equal(f.t, http.StatusOK, code)
	var out struct {
		Unread int64 `json:"unread"`
	}
	decode(f.t, env, &out)
	return out.Unread
}

func TestMessagingFlow(t *testing.T) {
	f := newFixture(t)
	alice := f.register("alice")
	bob := f.register("bob")
	aliceTok, bobTok := f.login("alice"), f.login("bob")

	// send
	code, env := f.do(http.MethodPost, "/messages", aliceTok, map[string]interface{}{
		"receiver_id": bob.ID.String(),
		"subject":     "hi",
		"content":     "hello",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var first model.Message
	decode(t, env, &first)
	assert.Equal(t, alice.ID, first.SenderID)
	assert.False(t, first.Edited)

	assert.Equal(t, int64(1), f.unreadCount(bobTok))

	code, env = f.do(http.MethodGet, "/notifications", bobTok, nil)
	require.Equal(t, http.StatusOK, code)
	var notes []model.Notification
	decode(t, env, &notes)
	require.Len(t, notes, 1)
	assert.Equal(t, "alice sent you a message: hi", notes[0].Description)

	// read
	code, _ = f.do(http.MethodPost, "/messages/"+first.ID.String()+"/read", bobTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Zero(t, f.unreadCount(bobTok))

	// edit
	code, env = f.do(http.MethodPut, "/messages/"+first.ID.String(), aliceTok, map[string]string{"content": "hello!"})
	require.Equal(t, http.StatusOK, code, env.Message)
	var edited model.Message
	decode(t, env, &edited)
	assert.True(t, edited.Edited)
	assert.Equal(t, "hello!", edited.Content)

	code, _ = f.do(http.MethodPut, "/messages/"+first.ID.String(), bobTok, map[string]string{"content": "nope"})
	assert.Equal(t, http.StatusForbidden, code)

	code, env = f.do(http.MethodGet, "/messages/"+first.ID.String()+"/history", bobTok, nil)
	require.Equal(t, http.StatusOK, code)
	var hist []model.MessageHistory
	decode(t, env, &hist)
	require.Len(t, hist, 1)
	assert.Equal(t, "hello", hist[0].OldContent)

	// reply and thread
	code, env = f.do(http.MethodPost, "/messages", bobTok, map[string]interface{}{
		"receiver_id": alice.ID.String(),
		"parent_id":   first.ID.String(),
		"content":     "hey",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var reply model.Message
	decode(t, env, &reply)

	code, env = f.do(http.MethodGet, "/messages/"+reply.ID.String()+"/thread", aliceTok, nil)
	require.Equal(t, http.StatusOK, code)
	var root model.ThreadNode
	decode(t, env, &root)
	assert.Equal(t, first.ID, root.Message.ID)
	require.Len(t, root.Children, 1)
	assert.Equal(t, reply.ID, root.Children[0].Message.ID)

	// cascade
	code, env = f.do(http.MethodDelete, "/users/"+alice.ID.String(), aliceTok, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	var deleted struct {
		TotalDeleted int64 `json:"total_deleted"`
	}
	decode(t, env, &deleted)
	// two messages, one history and both notifications
	assert.Equal(t, int64(5), deleted.TotalDeleted)

	code, _ = f.do(http.MethodGet, "/users/"+alice.ID.String(), bobTok, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Zero(t, f.unreadCount(bobTok))
}

func TestRequestErrors(t *testing.T) {
	f := newFixture(t)
	f.register("alice")
	tok := f.login("alice")

	code, env := f.do(http.MethodGet, "/messages", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "error", env.Status)

	code, env = f.do(http.MethodPost, "/messages", tok, map[string]string{"content": "x"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation failed", env.Message)

	code, _ = f.do(http.MethodGet, "/messages/not-a-uuid", tok, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "wrongpass1"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = f.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": "alice", "email": "other@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, code)
}

func TestSendIsRateLimited(t *testing.T) {
	f := newFixture(t)
	f.register("alice")
	bob := f.register("bob")
	tok := f.login("alice")

	body := map[string]string{"receiver_id": bob.ID.String(), "content": "spam"}
	for i := 0; i < 5; i++ {
		code, env := f.do(http.MethodPost, "/messages", tok, body)
		require.Equal(t, http.StatusCreated, code, env.Message)
	}
	code, _ := f.do(http.MethodPost, "/messages", tok, body)
	assert.Equal(t, http.StatusTooManyRequests, code)
}

func TestEventLogsAdminOnly(t *testing.T) {
	f := newFixture(t)
	f.register("alice")
	aliceTok := f.login("alice")

	_, err := f.app.Users.CreateUser(context.Background(), &model.Actor{Role: model.RoleAdmin}, model.CreateUserRequest{
		Username: "root", Email: "root@example.com", Password: "password123", Role: model.RoleAdmin,
	})
	require.NoError(t, err)
	adminTok := f.login("root")

	code, _ := f.do(http.MethodGet, "/event-logs", aliceTok, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env := f.do(http.MethodGet, "/event-logs?event_type=user_created", adminTok, nil)
	require.Equal(t, http.StatusOK, code)
	var logs []model.EventLog
	decode(t, env, &logs)
	assert.Len(t, logs, 2)

	code, _ = f.do(http.MethodGet, "/event-logs?event_type=bogus", adminTok, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, code)

	w := httptest.NewRecorder()
	f.h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "messaging_http_requests_total")
}
