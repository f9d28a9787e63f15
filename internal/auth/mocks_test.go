package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/TGlide/sawit-server/internal/model"
	"github.com/TGlide/sawit-server/internal/password"
	"github.com/TGlide/sawit-server/internal/repository"
)

// --- モック定義 ---

// fakeUserRepo はメモリ上でユーザー名・メールアドレスの一意性を保つUserRepository。
type fakeUserRepo struct {
	mu     sync.Mutex
	users  []*model.User
	nextID int64

	findErr  error
	createFn func(ctx context.Context, user *model.User) error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1}
}

func (f *fakeUserRepo) find(match func(u *model.User) bool) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, u := range f.users {
		if match(u) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.ID == id })
}

func (f *fakeUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.Username == username })
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.Email == email })
}

func (f *fakeUserRepo) List(ctx context.Context) ([]*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.User(nil), f.users...), nil
}

func (f *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	if f.createFn != nil {
		return f.createFn(ctx, user)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == user.Username {
			return model.ErrDuplicateUsername
		}
		if u.Email == user.Email {
			return model.ErrDuplicateEmail
		}
	}
	user.ID = f.nextID
	f.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	f.users = append(f.users, &copied)
	return nil
}

func (f *fakeUserRepo) UpdatePassword(ctx context.Context, id int64, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			u.Password = hash
			return nil
		}
	}
	return errors.New("user not found")
}

func (f *fakeUserRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

// fakeTokenRepo はメモリ上のResetTokenRepository。TTLは記録のみ。
type fakeTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]int64
	ttls   map[string]time.Duration
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (f *fakeTokenRepo) Save(ctx context.Context, token string, userID int64, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token] = userID
	f.ttls[token] = ttl
	return nil
}

func (f *fakeTokenRepo) FindUserID(ctx context.Context, token string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[token], nil
}

func (f *fakeTokenRepo) Consume(ctx context.Context, token string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID := f.tokens[token]
	delete(f.tokens, token)
	return userID, nil
}

// mockHasher は平文に接頭辞を付けるだけのHasher。
type mockHasher struct{}

func (mockHasher) Hash(plaintext string) (string, error) {
	return "hashed:" + plaintext, nil
}

func (mockHasher) Verify(plaintext, encoded string) bool {
	return encoded == "hashed:"+plaintext
}

type sentMail struct {
	to, subject, html string
}

type mockMailer struct {
	sent    []sentMail
	sendErr error
}

func (m *mockMailer) Send(ctx context.Context, to, subject, html string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, html: html})
	return nil
}

// mockSession はSessionHandleのモック。
type mockSession struct {
	userID     int64
	setErr     error
	destroyErr error
	destroyed  bool
}

func (m *mockSession) UserID() int64 { return m.userID }

func (m *mockSession) SetUserID(ctx context.Context, userID int64) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.userID = userID
	return nil
}

func (m *mockSession) Destroy(ctx context.Context) error {
	m.destroyed = true
	if m.destroyErr != nil {
		return m.destroyErr
	}
	m.userID = 0
	return nil
}

// mockMetrics は記録回数を数えるMetricsCollector。
type mockMetrics struct {
	registers     int
	loginSuccess  int
	loginFailure  int
	resetRequests int
	mailFailures  int
}

func (m *mockMetrics) RecordRegister() { m.registers++ }
func (m *mockMetrics) RecordLogin(success bool) {
	if success {
		m.loginSuccess++
	} else {
		m.loginFailure++
	}
}
func (m *mockMetrics) RecordPasswordResetRequested() { m.resetRequests++ }
func (m *mockMetrics) RecordMailFailure() { m.mailFailures++ }
func (m *mockMetrics) RecordPostCreated() {}
func (m *mockMetrics) RecordHTTPStatus(int) {}
func (m *mockMetrics) RecordRequestLatency(time.Duration) {}

// extractToken は再設定メールのリンクからトークンを取り出す。
func extractToken(html string) string {
	const marker = "/change-password/"
	i := strings.Index(html, marker)
	if i < 0 {
		return ""
	}
	rest := html[i+len(marker):]
	if j := strings.IndexByte(rest, '"'); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*fakeUserRepo)(nil)
var _ repository.ResetTokenRepository = (*fakeTokenRepo)(nil)
var _ password.Hasher = mockHasher{}
var _ SessionHandle = (*mockSession)(nil)
