// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net/http"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userIDContextKey はリクエストコンテキストに認証済みユーザーIDを格納するためのキー。
	userIDContextKey = contextKey("user_id")
	// requestIDContextKey はリクエストコンテキストにリクエストIDを格納するためのキー。
	requestIDContextKey = contextKey("request_id")
)

// PrincipalResolver はリクエストから認証主体を解決する。
// auth.Policyの部分集合として定義する。
type PrincipalResolver interface {
	Resolve(r *http.Request) (userID int64, ok bool)
}

// NewPrincipalMiddleware はリクエストの認証主体を解決してコンテキストに注入するミドルウェアを返す。
// 解決できない場合も拒否せず匿名として次に渡す。認証必須の判定はルート側で行う。
func NewPrincipalMiddleware(resolver PrincipalResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, ok := resolver.Resolve(r); ok {
				r = r.WithContext(ContextWithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext はリクエストコンテキストから認証済みユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDContextKey).(int64)
	if !ok || userID <= 0 {
		return 0, false
	}
	return userID, true
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// RequestIDFromContext はリクエストコンテキストからリクエストIDを取得する。
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}
