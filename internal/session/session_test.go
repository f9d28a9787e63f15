package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/TGlide/sawit-server/internal/model"
)

// --- モック定義 ---

type mockStore struct {
	sessions map[string]*model.Session
	ttls     map[string]time.Duration
	findErr  error
	saveErr  error
}

func newMockStore() *mockStore {
	return &mockStore{
		sessions: map[string]*model.Session{},
		ttls:     map[string]time.Duration{},
	}
}

func (m *mockStore) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (m *mockStore) Save(ctx context.Context, s *model.Session, ttl time.Duration) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	copied := *s
	m.sessions[s.ID] = &copied
	m.ttls[s.ID] = ttl
	return nil
}

func (m *mockStore) DeleteByID(ctx context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

func newTestManager(t *testing.T, store *mockStore) *Manager {
	t.Helper()
	m, err := NewManager(store, Config{Secret: "test-secret", MaxAge: time.Hour})
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}
	return m
}

func mustLoad(t *testing.T, m *Manager, w http.ResponseWriter, r *http.Request) *Session {
	t.Helper()
	s, err := m.Load(w, r)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	return s
}

func findCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	return nil
}

// --- テスト ---

func TestNewManager_RequiresSecret(t *testing.T) {
	if _, err := NewManager(newMockStore(), Config{}); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestNewManager_DefaultMaxAge(t *testing.T) {
	m, err := NewManager(newMockStore(), Config{Secret: "s"})
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}
	if m.config.MaxAge != DefaultMaxAge {
		t.Errorf("MaxAge = %v, want %v", m.config.MaxAge, DefaultMaxAge)
	}
}

func TestSignUnsign_RoundTrip(t *testing.T) {
	m := newTestManager(t, newMockStore())

	id, ok := m.unsign(m.sign("abc"))
	if !ok || id != "abc" {
		t.Errorf("unsign(sign(abc)) = (%q, %v), want (abc, true)", id, ok)
	}
}

func TestUnsign_RejectsForgedValues(t *testing.T) {
	m := newTestManager(t, newMockStore())
	other, _ := NewManager(newMockStore(), Config{Secret: "other-secret"})

	cases := map[string]string{
		"署名なし":     "abc",
		"空の署名":     "abc.",
		"IDなし":     ".c2ln",
		"不正なbase64": "abc.!!!",
		"別の鍵で署名":   other.sign("abc"),
		"ID改ざん":    strings.Replace(m.sign("abc"), "abc", "abd", 1),
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			if _, ok := m.unsign(value); ok {
				t.Errorf("unsign(%q) should fail", value)
			}
		})
	}
}

func TestLoad_NoCookie_IssuesNewSession(t *testing.T) {
	store := newMockStore()
	m := newTestManager(t, store)

	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	w := httptest.NewRecorder()

	s := mustLoad(t, m, w, req)

	if s.ID() == "" {
		t.Fatal("expected a new session id")
	}
	if s.Authenticated() {
		t.Error("new session must not be authenticated")
	}

	cookie := findCookie(w.Result())
	if cookie == nil {
		t.Fatal("expected session cookie to be set")
	}
	if !cookie.HttpOnly || cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("unexpected cookie attributes: %+v", cookie)
	}
	if cookie.MaxAge != 3600 {
		t.Errorf("MaxAge = %d, want 3600", cookie.MaxAge)
	}
	if id, ok := m.unsign(cookie.Value); !ok || id != s.ID() {
		t.Errorf("cookie value does not carry the session id")
	}
	if len(store.sessions) != 0 {
		t.Error("uninitialized session must not be written to the store")
	}
}

func TestLoad_ValidCookie_RestoresUser(t *testing.T) {
	store := newMockStore()
	store.sessions["sid"] = &model.Session{ID: "sid", UserID: 42}
	m := newTestManager(t, store)

	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: m.sign("sid")})
	w := httptest.NewRecorder()

	s := mustLoad(t, m, w, req)

	if s.ID() != "sid" || s.UserID() != 42 {
		t.Errorf("session = (%q, %d), want (sid, 42)", s.ID(), s.UserID())
	}
	if findCookie(w.Result()) != nil {
		t.Error("existing session should not reissue the cookie")
	}
}

func TestLoad_ForgedCookie_TreatedAsAbsent(t *testing.T) {
	store := newMockStore()
	store.sessions["sid"] = &model.Session{ID: "sid", UserID: 42}
	m := newTestManager(t, store)

	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "sid.forged"})
	w := httptest.NewRecorder()

	s := mustLoad(t, m, w, req)

	if s.ID() == "sid" || s.Authenticated() {
		t.Error("forged cookie must not restore the session")
	}
}

func TestLoad_StoreError_KeepsCookie(t *testing.T) {
	store := newMockStore()
	store.findErr = errors.New("redis timeout")
	m := newTestManager(t, store)

	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: m.sign("sid")})
	w := httptest.NewRecorder()

	s, err := m.Load(w, req)

	if err == nil {
		t.Fatal("expected error when the store fails")
	}
	if s != nil {
		t.Errorf("session = %+v, want nil", s)
	}
	// 一時的な障害でクライアントの有効なCookieを上書きしないこと
	if c := findCookie(w.Result()); c != nil {
		t.Errorf("unexpected Set-Cookie on store error: %+v", c)
	}
}

func TestSetUserID_SavesWithTTL(t *testing.T) {
	store := newMockStore()
	m := newTestManager(t, store)

	w := httptest.NewRecorder()
	s := mustLoad(t, m, w, httptest.NewRequest(http.MethodPost, "/graphql", nil))

	if err := s.SetUserID(context.Background(), 7); err != nil {
		t.Fatalf("SetUserID returned error: %v", err)
	}

	saved, ok := store.sessions[s.ID()]
	if !ok || saved.UserID != 7 {
		t.Fatalf("store = %+v, want user 7", store.sessions)
	}
	if store.ttls[s.ID()] != time.Hour {
		t.Errorf("ttl = %v, want 1h", store.ttls[s.ID()])
	}
	if !s.Authenticated() {
		t.Error("session should be authenticated after SetUserID")
	}
}

func TestSetUserID_StoreErrorKeepsSessionAnonymous(t *testing.T) {
	store := newMockStore()
	store.saveErr = errors.New("redis down")
	m := newTestManager(t, store)

	s := mustLoad(t, m, httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/graphql", nil))

	if err := s.SetUserID(context.Background(), 7); err == nil {
		t.Fatal("expected error")
	}
	if s.Authenticated() {
		t.Error("session must stay anonymous when save fails")
	}
}

func TestDestroy_DeletesAndClearsCookie(t *testing.T) {
	store := newMockStore()
	store.sessions["sid"] = &model.Session{ID: "sid", UserID: 42}
	m := newTestManager(t, store)

	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: m.sign("sid")})
	w := httptest.NewRecorder()
	s := mustLoad(t, m, w, req)

	if err := s.Destroy(context.Background()); err != nil {
		t.Fatalf("Destroy returned error: %v", err)
	}

	if _, ok := store.sessions["sid"]; ok {
		t.Error("session should be removed from the store")
	}
	if s.Authenticated() {
		t.Error("session should be anonymous after Destroy")
	}
	cookie := findCookie(w.Result())
	if cookie == nil || cookie.MaxAge >= 0 {
		t.Errorf("expected clearing cookie, got %+v", cookie)
	}
}

func TestContext_RoundTrip(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Error("expected nil session from empty context")
	}
	if UserIDFromContext(context.Background()) != 0 {
		t.Error("expected 0 user id from empty context")
	}

	store := newMockStore()
	store.sessions["sid"] = &model.Session{ID: "sid", UserID: 5}
	m := newTestManager(t, store)
	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: m.sign("sid")})
	s := mustLoad(t, m, httptest.NewRecorder(), req)

	ctx := NewContext(context.Background(), s)
	if FromContext(ctx) != s {
		t.Error("FromContext should return the stored session")
	}
	if UserIDFromContext(ctx) != 5 {
		t.Errorf("UserIDFromContext = %d, want 5", UserIDFromContext(ctx))
	}
}
