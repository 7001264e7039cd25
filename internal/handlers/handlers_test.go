package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"ecosense/internal/identity"
	"ecosense/internal/middleware"
	"ecosense/internal/models"
	"ecosense/internal/services"
)

type memUsers struct {
	byName map[string]*models.User
	byID   map[int64]*models.User
	nextID int64
}

func newMemUsers() *memUsers {
	return &memUsers{
		byName: make(map[string]*models.User),
		byID:   make(map[int64]*models.User),
		nextID: 100,
	}
}

func (m *memUsers) add(user *models.User) {
	m.byName[user.Username] = user
	m.byID[user.ID] = user
}

func (m *memUsers) Create(ctx context.Context, user *models.User) error {
	m.nextID++
	user.ID = m.nextID
	user.CreatedAt = time.Now()
	m.add(user)
	return nil
}

func (m *memUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user, ok := m.byName[username]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return user, nil
}

func (m *memUsers) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user, ok := m.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return user, nil
}

type memMessages struct {
	byUser map[int64][]models.ChatMessage
}

func newMemMessages() *memMessages {
	return &memMessages{byUser: make(map[int64][]models.ChatMessage)}
}

func (m *memMessages) ListByUser(ctx context.Context, userID int64) ([]models.ChatMessage, error) {
	msgs := make([]models.ChatMessage, len(m.byUser[userID]))
	copy(msgs, m.byUser[userID])
	return msgs, nil
}

func (m *memMessages) Append(ctx context.Context, userID int64, role, content string) error {
	m.byUser[userID] = append(m.byUser[userID], models.ChatMessage{Role: role, Content: content})
	return nil
}

func (m *memMessages) DeleteByUser(ctx context.Context, userID int64) error {
	delete(m.byUser, userID)
	return nil
}

type stubProvider struct {
	reply string
	err   error
}

func (p *stubProvider) Reply(ctx context.Context, history []models.ChatMessage, message string) (string, error) {
	return p.reply, p.err
}

type stubLimiter struct{ allow bool }

func (l *stubLimiter) Allow(ctx context.Context, userID int64) bool { return l.allow }

type noopNotifier struct{}

func (noopNotifier) HistoryUpdated(ctx context.Context, userID int64) {}

type testEnv struct {
	router   *chi.Mux
	users    *memUsers
	messages *memMessages
	provider *stubProvider
	limiter  *stubLimiter
}

func newTestEnv() *testEnv {
	users := newMemUsers()
	users.add(&models.User{ID: 0, Username: "guest", DisplayName: "Guest"})
	users.add(&models.User{ID: 7, Username: "alice", DisplayName: "Alice"})

	messages := newMemMessages()
	provider := &stubProvider{reply: "Try a reusable bottle."}
	limiter := &stubLimiter{allow: true}

	chatSvc := services.NewChatService(messages, provider, limiter, noopNotifier{})
	authSvc := services.NewAuthService(users, "plaintext", "")
	resolver := identity.NewResolver(identity.NewPlaintextVerifier(users), true, 0)

	chatHandler := NewChatHandler(chatSvc)
	authHandler := NewAuthHandler(authSvc)
	userHandler := NewUserHandler(users)

	r := chi.NewRouter()
	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/register", authHandler.Register)
		api.Post("/auth/login", authHandler.Login)

		api.Group(func(authed chi.Router) {
			authed.Use(middleware.SessionAuth(resolver))
			authed.Get("/me", userHandler.Me)
			authed.Route("/chat", func(chat chi.Router) {
				chat.Get("/history", chatHandler.History)
				chat.Post("/message", chatHandler.Send)
				chat.Delete("/history", chatHandler.Clear)
			})
		})
	})

	return &testEnv{router: r, users: users, messages: messages, provider: provider, limiter: limiter}
}

func (e *testEnv) do(method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reader = bytes.NewReader(jsonBody)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decodeErrorBody(t *testing.T, rr *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()

	var body models.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	return body
}

// ─── Chat history ───

func TestChatHistory(t *testing.T) {
	env := newTestEnv()
	env.messages.byUser[7] = []models.ChatMessage{{Role: "user", Content: "hi"}}

	rr := env.do(http.MethodGet, "/api/chat/history", "alice", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var resp models.ChatHistoryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(resp.Messages))
	}
	if resp.Messages[0].Role != "user" || resp.Messages[0].Content != "hi" {
		t.Errorf("Unexpected message: %+v", resp.Messages[0])
	}
}

func TestChatHistory_EmptyConversation(t *testing.T) {
	env := newTestEnv()

	rr := env.do(http.MethodGet, "/api/chat/history", "alice", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rr.Body.Bytes(), &raw); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if string(raw["messages"]) != "[]" {
		t.Errorf("Expected empty messages array, got %s", raw["messages"])
	}
}

func TestChatHistory_UnknownCredential(t *testing.T) {
	env := newTestEnv()

	rr := env.do(http.MethodGet, "/api/chat/history", "stranger", nil)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("Expected status 401, got %d", rr.Code)
	}
	if body := decodeErrorBody(t, rr); body.Message != "Unauthorized" {
		t.Errorf("Expected message %q, got %q", "Unauthorized", body.Message)
	}
}

func TestChatHistory_AnonymousFallback(t *testing.T) {
	env := newTestEnv()
	env.messages.byUser[0] = []models.ChatMessage{{Role: "assistant", Content: "welcome"}}

	rr := env.do(http.MethodGet, "/api/chat/history", "", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for anonymous request, got %d", rr.Code)
	}

	var resp models.ChatHistoryResponse
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if len(resp.Messages) != 1 || resp.Messages[0].Content != "welcome" {
		t.Errorf("Expected the anonymous user's conversation, got %+v", resp.Messages)
	}
}

// ─── Sending messages ───

func TestSendMessage(t *testing.T) {
	env := newTestEnv()

	rr := env.do(http.MethodPost, "/api/chat/message", "alice", models.SendMessageRequest{Message: "how do I recycle?"})

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var reply models.ChatMessage
	if err := json.Unmarshal(rr.Body.Bytes(), &reply); err != nil {
		t.Fatalf("Failed to decode reply: %v", err)
	}
	if reply.Role != "assistant" || reply.Content != "Try a reusable bottle." {
		t.Errorf("Unexpected reply: %+v", reply)
	}

	if len(env.messages.byUser[7]) != 2 {
		t.Errorf("Expected 2 stored messages, got %d", len(env.messages.byUser[7]))
	}
}

func TestSendMessage_Blank(t *testing.T) {
	env := newTestEnv()

	rr := env.do(http.MethodPost, "/api/chat/message", "alice", models.SendMessageRequest{Message: "   "})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rr.Code)
	}
	if body := decodeErrorBody(t, rr); body.Message != "Message is required" {
		t.Errorf("Expected message %q, got %q", "Message is required", body.Message)
	}
}

func TestSendMessage_RateLimited(t *testing.T) {
	env := newTestEnv()
	env.limiter.allow = false

	rr := env.do(http.MethodPost, "/api/chat/message", "alice", models.SendMessageRequest{Message: "hello"})

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected status 429, got %d", rr.Code)
	}
	if body := decodeErrorBody(t, rr); body.Message != "rate limited" {
		t.Errorf("Expected message %q, got %q", "rate limited", body.Message)
	}
}

func TestSendMessage_AssistantDown(t *testing.T) {
	env := newTestEnv()
	env.provider.err = context.DeadlineExceeded

	rr := env.do(http.MethodPost, "/api/chat/message", "alice", models.SendMessageRequest{Message: "hello"})

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("Expected status 502, got %d", rr.Code)
	}
	if body := decodeErrorBody(t, rr); body.Message == "" {
		t.Error("Expected an error message in the body")
	}
}

func TestClearHistory(t *testing.T) {
	env := newTestEnv()
	env.messages.byUser[7] = []models.ChatMessage{{Role: "user", Content: "hi"}}

	rr := env.do(http.MethodDelete, "/api/chat/history", "alice", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if len(env.messages.byUser[7]) != 0 {
		t.Error("Expected conversation to be cleared")
	}
}

// ─── Profile ───

func TestMe(t *testing.T) {
	env := newTestEnv()

	rr := env.do(http.MethodGet, "/api/me", "alice", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var user models.User
	if err := json.Unmarshal(rr.Body.Bytes(), &user); err != nil {
		t.Fatalf("Failed to decode user: %v", err)
	}
	if user.ID != 7 || user.Username != "alice" {
		t.Errorf("Unexpected user: %+v", user)
	}
}

func TestMe_AnonymousSeedUser(t *testing.T) {
	env := newTestEnv()

	rr := env.do(http.MethodGet, "/api/me", "", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var user models.User
	json.Unmarshal(rr.Body.Bytes(), &user)
	if user.ID != 0 || user.Username != "guest" {
		t.Errorf("Expected the seeded guest user, got %+v", user)
	}
}

// ─── Auth endpoints ───

func TestRegister(t *testing.T) {
	env := newTestEnv()

	rr := env.do(http.MethodPost, "/api/auth/register", "", models.RegisterRequest{
		Username: "bob",
		Password: "hunter2hunter2",
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var user models.User
	if err := json.Unmarshal(rr.Body.Bytes(), &user); err != nil {
		t.Fatalf("Failed to decode user: %v", err)
	}
	if user.Username != "bob" {
		t.Errorf("Expected username bob, got %q", user.Username)
	}
	if bytes.Contains(rr.Body.Bytes(), []byte("password")) {
		t.Error("Response must not leak password fields")
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	env := newTestEnv()

	rr := env.do(http.MethodPost, "/api/auth/register", "", models.RegisterRequest{
		Username: "alice",
		Password: "hunter2hunter2",
	})

	if rr.Code != http.StatusConflict {
		t.Fatalf("Expected status 409, got %d", rr.Code)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv()

	register := env.do(http.MethodPost, "/api/auth/register", "", models.RegisterRequest{
		Username: "bob",
		Password: "hunter2hunter2",
	})
	if register.Code != http.StatusCreated {
		t.Fatalf("Register failed: %d", register.Code)
	}

	rr := env.do(http.MethodPost, "/api/auth/login", "", models.LoginRequest{
		Username: "bob",
		Password: "hunter2hunter2",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp models.LoginResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Token != "bob" {
		t.Errorf("Expected plaintext credential %q, got %q", "bob", resp.Token)
	}

	// The issued credential works against the session middleware.
	history := env.do(http.MethodGet, "/api/chat/history", resp.Token, nil)
	if history.Code != http.StatusOK {
		t.Errorf("Expected issued credential to authenticate, got %d", history.Code)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv()

	env.do(http.MethodPost, "/api/auth/register", "", models.RegisterRequest{
		Username: "bob",
		Password: "hunter2hunter2",
	})

	rr := env.do(http.MethodPost, "/api/auth/login", "", models.LoginRequest{
		Username: "bob",
		Password: "wrong-password",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("Expected status 401, got %d", rr.Code)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest(http.MethodPost, "/api/chat/message", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer alice")

	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rr.Code)
	}
}
