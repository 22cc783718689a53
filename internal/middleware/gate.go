package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/touristguide/internal/model"
	"github.com/hitoshi/touristguide/internal/token"
)

// 認可ゲートの段階。メトリクスとログのstageラベルに使う。
const (
	StageAuthenticate = "authenticate"
	StageRole         = "role"
	StageOwnership    = "ownership"
)

// 拒否理由。レスポンスには含めず、ログとメトリクスにのみ記録する。
const (
	ReasonMissingToken    = "missing_token"
	ReasonMalformedHeader = "malformed_header"
	ReasonInvalidToken    = "invalid_token"
	ReasonExpiredToken    = "expired_token"
	ReasonNoIdentity      = "no_identity"
	ReasonUnknownUser     = "unknown_user"
	ReasonRoleMismatch    = "role_mismatch"
	ReasonOwnerMismatch   = "owner_mismatch"
)

// TokenVerifier はBearerトークンを検証する。token.Serviceが実装する。
type TokenVerifier interface {
	Verify(tokenString string) (*token.Claims, error)
}

// RoleLookup はメールアドレスから登録済みユーザーのロールを引く。
// ユーザーが存在しない場合はfound=falseを返す。
type RoleLookup interface {
	RoleOf(ctx context.Context, email string) (role model.Role, found bool, err error)
}

// DenialRecorder は拒否をメトリクスに記録する。
type DenialRecorder interface {
	RecordAuthDenial(stage, reason string)
}

// Gate はルートごとに組み合わせる認可ミドルウェア群。
// Authenticate → RequireRole → RequireOwner の順に適用すること。
// 後段はAuthenticateがコンテキストに注入したアクターを前提とし、
// アクターが無い場合は401で拒否する。
type Gate struct {
	verifier TokenVerifier
	roles    RoleLookup
	recorder DenialRecorder
	logger   *slog.Logger
}

// NewGate はGateを生成する。recorderはnilでもよい。
func NewGate(verifier TokenVerifier, roles RoleLookup, recorder DenialRecorder, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		verifier: verifier,
		roles:    roles,
		recorder: recorder,
		logger:   logger,
	}
}

// Authenticate はAuthorizationヘッダーのBearerトークンを検証し、
// 成功した場合はトークンのemailをアクターとしてコンテキストに注入する。
// ヘッダー欠落・形式不正・署名不正・期限切れはすべて同じ401レスポンスになる。
func (g *Gate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, reason := bearerToken(r.Header.Get("Authorization"))
		if reason != "" {
			g.deny(w, r, StageAuthenticate, reason)
			return
		}

		claims, err := g.verifier.Verify(raw)
		if err != nil {
			reason := ReasonInvalidToken
			if errors.Is(err, token.ErrExpiredToken) {
				reason = ReasonExpiredToken
			}
			g.deny(w, r, StageAuthenticate, reason)
			return
		}

		ctx := ContextWithActor(r.Context(), Actor{Email: claims.Email})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole は登録済みユーザーのロールがroleと一致する場合のみ通過させる。
// ユーザーが存在しない場合とロール不一致は403。
func (g *Gate) RequireRole(role model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				g.deny(w, r, StageRole, ReasonNoIdentity)
				return
			}

			stored, found, err := g.roles.RoleOf(r.Context(), actor.Email)
			if err != nil {
				g.logger.Error("failed to look up role",
					slog.String("actor_email", actor.Email),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if !found {
				g.deny(w, r, StageRole, ReasonUnknownUser)
				return
			}
			if stored != role {
				g.deny(w, r, StageRole, ReasonRoleMismatch)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireOwner はパスパラメータparamの値がアクターのメールアドレスと
// 完全一致（大文字小文字を区別）する場合のみ通過させる。不一致は403。
func (g *Gate) RequireOwner(param string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				g.deny(w, r, StageOwnership, ReasonNoIdentity)
				return
			}

			if chi.URLParam(r, param) != actor.Email {
				g.deny(w, r, StageOwnership, ReasonOwnerMismatch)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// deny は拒否をログ・メトリクスに記録し、エラーレスポンスを書き込む。
// アクターが確定していない拒否は401、それ以外は403。
func (g *Gate) deny(w http.ResponseWriter, r *http.Request, stage, reason string) {
	status := http.StatusForbidden
	apiErr := model.NewForbiddenError()
	switch reason {
	case ReasonMissingToken, ReasonMalformedHeader, ReasonInvalidToken, ReasonExpiredToken, ReasonNoIdentity:
		status = http.StatusUnauthorized
		apiErr = model.NewUnauthenticatedError()
	}

	attrs := []any{
		slog.String("stage", stage),
		slog.String("reason", reason),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	}
	if email := ActorEmail(r.Context()); email != "" {
		attrs = append(attrs, slog.String("actor_email", email))
	}
	g.logger.Warn("authorization denied", attrs...)

	if g.recorder != nil {
		g.recorder.RecordAuthDenial(stage, reason)
	}

	WriteErrorResponse(w, status, apiErr)
}

// bearerToken は "Bearer <token>" 形式のヘッダーからトークンを取り出す。
// スキーム名の大文字小文字は区別しない。失敗時は拒否理由を返す。
func bearerToken(header string) (string, string) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ReasonMissingToken
	}

	scheme, raw, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ReasonMalformedHeader
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ReasonMalformedHeader
	}
	return raw, ""
}
