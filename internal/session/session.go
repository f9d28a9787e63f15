// Package session はCookieベースのサーバーサイドセッションを提供する。
//
// CookieにはセッションIDとHMAC-SHA256署名を格納し、セッションデータ本体は
// SessionRepository（Redis）に保存する。署名が一致しないCookieは存在しないものとして扱う。
package session

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/TGlide/sawit-server/internal/model"
	"github.com/TGlide/sawit-server/internal/repository"
)

// CookieName はセッションCookieの名前。
const CookieName = "qid"

// DefaultMaxAge はセッションの既定の有効期間（10年）。
const DefaultMaxAge = 10 * 365 * 24 * time.Hour

const sessionIDBytes = 24

// Config はセッションCookieの設定。
type Config struct {
	Secret string
	MaxAge time.Duration
	Domain string
	Secure bool
}

// Manager はリクエストごとのセッションの読み込みとCookieの発行を行う。
type Manager struct {
	store  repository.SessionRepository
	secret []byte
	config Config
}

// NewManager はManagerを生成する。Secretは必須。
func NewManager(store repository.SessionRepository, cfg Config) (*Manager, error) {
	if cfg.Secret == "" {
		return nil, errors.New("session secret is required")
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	return &Manager{
		store:  store,
		secret: []byte(cfg.Secret),
		config: cfg,
	}, nil
}

// Load はリクエストのCookieからセッションを読み込む。
// 有効なCookieがない場合やストアにセッションがない場合は新しいIDを採番し、
// レスポンスにCookieを設定する。ストアへの書き込みはユーザーIDの設定時まで行わない。
// ストアの読み込みに失敗した場合はCookieを書き換えずにエラーを返す。
func (m *Manager) Load(w http.ResponseWriter, r *http.Request) (*Session, error) {
	s := &Session{manager: m, w: w}

	if cookie, err := r.Cookie(CookieName); err == nil {
		if id, ok := m.unsign(cookie.Value); ok {
			data, err := m.store.FindByID(r.Context(), id)
			if err != nil {
				return nil, fmt.Errorf("failed to load session: %w", err)
			}
			if data != nil {
				s.data = data
				return s, nil
			}
		}
	}

	id, err := newSessionID()
	if err != nil {
		// 乱数生成の失敗は回復不能だが、リクエスト自体は匿名で処理を続ける
		slog.Error("failed to generate session id", slog.String("error", err.Error()))
		s.data = &model.Session{}
		return s, nil
	}
	s.data = &model.Session{ID: id}
	m.setCookie(w, id)
	return s, nil
}

func (m *Manager) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    m.sign(id),
		Path:     "/",
		Domain:   m.config.Domain,
		MaxAge:   int(m.config.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Domain:   m.config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// sign は "<id>.<base64url(HMAC-SHA256(id))>" 形式のCookie値を返す。
func (m *Manager) sign(id string) string {
	return id + "." + base64.RawURLEncoding.EncodeToString(m.mac(id))
}

// unsign は署名を検証し、正しければセッションIDを返す。
func (m *Manager) unsign(value string) (string, bool) {
	idx := strings.LastIndexByte(value, '.')
	if idx <= 0 || idx == len(value)-1 {
		return "", false
	}
	id, sig := value[:idx], value[idx+1:]

	decoded, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", false
	}
	if !hmac.Equal(decoded, m.mac(id)) {
		return "", false
	}
	return id, true
}

func (m *Manager) mac(id string) []byte {
	h := hmac.New(sha256.New, m.secret)
	h.Write([]byte(id))
	return h.Sum(nil)
}

func newSessionID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Session はリクエストに紐づくセッションのハンドル。
// リゾルバーからログイン・ログアウトを行い、必要に応じてCookieを書き換える。
type Session struct {
	manager *Manager
	w       http.ResponseWriter

	mu   sync.Mutex
	data *model.Session
}

// ID はセッションIDを返す。
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.ID
}

// UserID はログイン中のユーザーIDを返す。未ログインの場合は0。
func (s *Session) UserID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.UserID
}

// Authenticated はセッションにユーザーIDが設定されているかを返す。
func (s *Session) Authenticated() bool {
	return s.UserID() != 0
}

// SetUserID はセッションにユーザーIDを設定してストアに保存する。
// Cookieの有効期限も更新する。
func (s *Session) SetUserID(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data.ID == "" {
		id, err := newSessionID()
		if err != nil {
			return err
		}
		s.data.ID = id
	}

	next := &model.Session{ID: s.data.ID, UserID: userID}
	if err := s.manager.store.Save(ctx, next, s.manager.config.MaxAge); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	s.data = next
	s.manager.setCookie(s.w, next.ID)
	return nil
}

// Destroy はストアからセッションを削除し、Cookieを消去する。
// ストアの削除に失敗した場合もCookieは消去し、エラーを返す。
func (s *Session) Destroy(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.data.ID
	s.data = &model.Session{}
	s.manager.clearCookie(s.w)

	if id == "" {
		return nil
	}
	if err := s.manager.store.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

type contextKey struct{}

// NewContext はセッションを格納したコンテキストを返す。
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext はコンテキストからセッションを取り出す。格納されていない場合はnil。
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}

// UserIDFromContext はコンテキストのセッションからユーザーIDを返す。
// セッションがない場合や未ログインの場合は0。
func UserIDFromContext(ctx context.Context) int64 {
	s := FromContext(ctx)
	if s == nil {
		return 0
	}
	return s.UserID()
}
