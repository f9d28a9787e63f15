package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// healthTimeout は依存先ごとの疎通確認のタイムアウト。
const healthTimeout = 2 * time.Second

// HealthChecker は依存先（PostgreSQL、Redis）の疎通確認を行う。
type HealthChecker interface {
	Name() string
	Ping(ctx context.Context) error
}

// PingFunc は関数をHealthCheckerとして扱うためのアダプタ。
type PingFunc struct {
	Label string
	Fn    func(ctx context.Context) error
}

// Name は依存先の名前を返す。
func (p PingFunc) Name() string { return p.Label }

// Ping は疎通確認を行う。
func (p PingFunc) Ping(ctx context.Context) error { return p.Fn(ctx) }

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthHandler は GET /health のハンドラー。
type HealthHandler struct {
	checkers []HealthChecker
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(checkers ...HealthChecker) *HealthHandler {
	return &HealthHandler{checkers: checkers}
}

// ServeHTTP はすべての依存先に疎通確認を行い、1つでも失敗すれば503を返す。
// エラーの詳細はログにのみ出力する。
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(h.checkers))}
	status := http.StatusOK

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		err := c.Ping(ctx)
		cancel()

		if err != nil {
			slog.Error("health check failed",
				slog.String("dependency", c.Name()),
				slog.String("error", err.Error()),
			)
			resp.Checks[c.Name()] = "unavailable"
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[c.Name()] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
