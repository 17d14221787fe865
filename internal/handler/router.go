package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/choretracker/internal/envelope"
	"github.com/hitoshi/choretracker/internal/metrics"
	"github.com/hitoshi/choretracker/internal/middleware"
	"github.com/hitoshi/choretracker/internal/repository"
)

// idPattern はリソースIDのパスセグメント制約。int64の範囲外はRequest.IDで弾く。
const idPattern = "{" + idParam + ":[1-9][0-9]{0,18}}"

// healthTimeout はヘルスチェックのDB疎通確認のタイムアウト。
const healthTimeout = 2 * time.Second

// HealthChecker はヘルスチェック時の依存先疎通確認のインターフェース。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// APIPrefix はAPIルートのマウント先。"/"または"/apis"。
	APIPrefix string

	// ミドルウェア依存
	Resolver          middleware.PrincipalResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFProtection    bool
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger
	// TrustProxyHeaders はX-Forwarded-For等からクライアントIPを復元するかどうか。
	// リバースプロキシ配下でのみ有効にする。
	TrustProxyHeaders bool

	// 監視
	HealthChecker HealthChecker
	Metrics       *metrics.Collector
	Gatherer      prometheus.Gatherer

	// ドメイン
	TaskRepo      repository.TaskRepository
	TaskGroupRepo repository.TaskGroupRepository
	UserRepo      repository.UserRepository
	// SignIn がnilの場合はGoogleサインインのルートを登録しない。
	SignIn  SignInService
	Tickets TicketIssuer
}

// Routes はAPIのルートテーブルを返す。
func Routes(deps *RouterDeps) []Route {
	tasks := NewTaskHandler(deps.TaskRepo)
	groups := NewTaskGroupHandler(deps.TaskGroupRepo)
	users := NewUserHandler(deps.UserRepo, deps.SignIn, deps.Tickets)

	var signInLimit []func(http.Handler) http.Handler
	if deps.RateLimiter != nil {
		signInLimit = append(signInLimit, deps.RateLimiter.SignInMiddleware())
	}

	routes := []Route{
		{Method: http.MethodGet, Pattern: "/tasks", RequiresAuth: true, Handle: tasks.List},
		{Method: http.MethodPost, Pattern: "/tasks", RequiresAuth: true, ExpectsBody: true, Handle: tasks.Create},
		{Method: http.MethodGet, Pattern: "/tasks/" + idPattern, RequiresAuth: true, Handle: tasks.Get},
		{Method: http.MethodPut, Pattern: "/tasks/" + idPattern, RequiresAuth: true, ExpectsBody: true, Handle: tasks.Update},
		{Method: http.MethodDelete, Pattern: "/tasks/" + idPattern, RequiresAuth: true, Handle: tasks.Delete},

		{Method: http.MethodGet, Pattern: "/task-groups", RequiresAuth: true, Handle: groups.List},
		{Method: http.MethodPost, Pattern: "/task-groups", RequiresAuth: true, ExpectsBody: true, Handle: groups.Create},
		{Method: http.MethodGet, Pattern: "/task-groups/" + idPattern, RequiresAuth: true, Handle: groups.Get},
		{Method: http.MethodPut, Pattern: "/task-groups/" + idPattern, RequiresAuth: true, ExpectsBody: true, Handle: groups.Update},
		{Method: http.MethodDelete, Pattern: "/task-groups/" + idPattern, RequiresAuth: true, Handle: groups.Delete},

		{Method: http.MethodGet, Pattern: "/user/profile", RequiresAuth: true, Handle: users.GetProfile},
		{Method: http.MethodPut, Pattern: "/user/profile", RequiresAuth: true, ExpectsBody: true, Handle: users.PutProfile},
		{Method: http.MethodPost, Pattern: "/user/sign-out", Handle: users.SignOut},
	}
	if deps.SignIn != nil {
		routes = append(routes, Route{
			Method: http.MethodPost, Pattern: "/user/google-sign-in", ExpectsBody: true,
			Handle: users.GoogleSignIn, Middlewares: signInLimit,
		})
	}
	return routes
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
// ルートテーブルに同一のメソッドとパターンが重複している場合はpanicする。
//
// ミドルウェアスタックの実行順序:
//
//	[RealIP] → RequestID → Recovery → SecurityHeaders → CORS → Principal → Logging → Metrics
//	→ (API) RateLimit(General) → CSRF
//
// /health と /metrics はAPIのマウント先の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		envelope.WriteError(w, http.StatusNotFound, msgNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		envelope.WriteError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
	})

	if deps.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewPrincipalMiddleware(deps.Resolver))
	r.Use(middleware.NewLoggingMiddleware(logger))

	var recorder DomainErrorRecorder
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
		recorder = deps.Metrics
	}

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	pipeline := NewPipeline(recorder)
	routes := Routes(deps)
	checkDuplicateRoutes(routes)

	mountAPI := func(api chi.Router) {
		if deps.RateLimiter != nil {
			api.Use(deps.RateLimiter.GeneralMiddleware())
		}
		if deps.CSRFProtection {
			api.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))
		}
		api.Group(func(api chi.Router) {
			if deps.CSRFProtection {
				api.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
			}
			for _, route := range routes {
				api.With(route.Middlewares...).Method(route.Method, route.Pattern, pipeline.Handler(route))
			}
		})
	}

	if deps.APIPrefix == "" || deps.APIPrefix == "/" {
		r.Group(mountAPI)
	} else {
		r.Route(deps.APIPrefix, mountAPI)
	}

	return r
}

// checkDuplicateRoutes はメソッドとパターンの重複を検出してpanicする。
func checkDuplicateRoutes(routes []Route) {
	seen := make(map[string]bool, len(routes))
	for _, route := range routes {
		key := route.Method + " " + route.Pattern
		if seen[key] {
			panic(fmt.Sprintf("duplicate route: %s", key))
		}
		seen[key] = true
	}
}

// healthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
// コンテナのヘルスチェックから呼ばれるため、エンベロープは使わない。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
				return
			}
		}

		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
