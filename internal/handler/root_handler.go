package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthChecker はストアの疎通確認を行う。store.Databaseが実装する。
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// rootMessage はGET /の応答。稼働確認に使われているため変更しないこと。
const rootMessage = "Hello from Tourist Guide server..!"

// Root はGET /を処理する。
func Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(rootMessage))
}

// NewHealthHandler はストアへのPingが成功すれば200 "ok"を返すハンドラーを生成する。
// checkerがnilの場合は常に200。
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := checker.Ping(ctx); err != nil {
				slog.Warn("health check failed", slog.String("error", err.Error()))
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("unavailable"))
				return
			}
		}

		w.Write([]byte("ok"))
	}
}
