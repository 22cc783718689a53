// Package middleware はHTTPミドルウェアを提供する。
package middleware

import "context"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// actorContextKey はトークン検証済みのアクター（メールアドレス）を格納するキー。
	actorContextKey = contextKey("actor")
	// requestStateContextKey はアクセスログが参照するリクエスト単位の状態を格納するキー。
	requestStateContextKey = contextKey("request_state")
)

// Actor はトークンから取り出した認証済みの利用者。
type Actor struct {
	Email string
}

// ContextWithActor はコンテキストにアクターを注入する。
// アクセスログミドルウェアの配下であれば、ログにもアクターが記録される。
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	if st, ok := ctx.Value(requestStateContextKey).(*requestState); ok {
		st.actorEmail = actor.Email
	}
	return context.WithValue(ctx, actorContextKey, actor)
}

// ActorFromContext はコンテキストからアクターを取得する。
// Authenticateを通過したリクエストでのみ値が入っている。
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(Actor)
	if !ok || actor.Email == "" {
		return Actor{}, false
	}
	return actor, true
}

// ActorEmail はアクターのメールアドレスを返す。未認証の場合は空文字列。
func ActorEmail(ctx context.Context) string {
	actor, _ := ActorFromContext(ctx)
	return actor.Email
}

// requestState はルート単位のミドルウェアで判明した情報を外側のミドルウェアへ渡す。
// 内側でr.WithContextしたコンテキストは外側から見えないため、ポインタで共有する。
type requestState struct {
	actorEmail string
}

func withRequestState(ctx context.Context) (context.Context, *requestState) {
	st := &requestState{}
	return context.WithValue(ctx, requestStateContextKey, st), st
}
