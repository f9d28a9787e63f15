// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/TGlide/sawit-server/internal/model"
	"github.com/TGlide/sawit-server/internal/session"
)

// SessionLoader はリクエストからセッションを復元するインターフェース。
// session.Managerが実装する。
type SessionLoader interface {
	Load(w http.ResponseWriter, r *http.Request) (*session.Session, error)
}

// NewSessionMiddleware は署名付きCookieからセッションを読み込み、
// リクエストコンテキストに格納するミドルウェアを返す。
// 未認証のリクエストも拒否せず、匿名セッションとして後続に渡す。
// 認可の判定はGraphQLのガードが行う。
// セッションストアの障害時は503を返し、クライアントのCookieには触れない。
func NewSessionMiddleware(loader SessionLoader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := loader.Load(w, r)
			if err != nil {
				slog.Error("session load failed",
					slog.String("error", err.Error()),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewSessionUnavailableError())
				return
			}
			next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), sess)))
		})
	}
}
