package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/touristguide/internal/middleware"
	"github.com/hitoshi/touristguide/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger             *slog.Logger
	CORSAllowedOrigins []string
	RateLimiter        *middleware.RateLimiter
	Gate               *middleware.Gate
	HTTPMetrics        middleware.HTTPRecorder
	MetricsHandler     http.Handler
	HealthChecker      HealthChecker

	// トークン
	TokenIssuer TokenIssuer

	// リソース
	UserService     UserServiceInterface
	GuideService    GuideServiceInterface
	PackageService  PackageServiceInterface
	WishlistService WishlistServiceInterface
	BookingService  BookingServiceInterface
	StoryService    StoryServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// 全ルート共通のミドルウェアの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → Metrics → RateLimit
//
// 認可ゲートはルートごとに Authenticate → RequireRole → RequireOwner の部分集合を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))
	if deps.HTTPMetrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPMetrics))
	}
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.Middleware())
	}

	gate := deps.Gate
	auth := gate.Authenticate
	admin := gate.RequireRole(model.RoleAdmin)
	tourGuide := gate.RequireRole(model.RoleTourGuide)
	ownerByEmail := gate.RequireOwner("email")

	tokenHandler := NewTokenHandler(deps.TokenIssuer)
	userHandler := NewUserHandler(deps.UserService)
	guideHandler := NewGuideHandler(deps.GuideService)
	packageHandler := NewPackageHandler(deps.PackageService)
	wishlistHandler := NewWishlistHandler(deps.WishlistService)
	bookingHandler := NewBookingHandler(deps.BookingService)
	storyHandler := NewStoryHandler(deps.StoryService)

	// --- 運用 ---
	r.Get("/", Root)
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- トークン・ユーザー ---
	r.Post("/jwt", tokenHandler.Issue)
	r.Post("/user", userHandler.SignIn)
	r.Get("/user/{email}", userHandler.Get)
	r.With(auth, admin).Get("/users", userHandler.List)
	r.With(auth, admin).Get("/users-total", userHandler.Count)
	r.With(auth, ownerByEmail).Patch("/users/update/{email}", userHandler.UpdateSelf)
	r.With(auth, admin).Patch("/users/{id}", userHandler.UpdateRole)

	// --- ツアーガイド ---
	r.Get("/tourGuides", guideHandler.List)
	r.With(auth).Post("/tourGuides", guideHandler.Create)
	r.Get("/tourGuides/{id}", guideHandler.Get)
	r.With(auth).Patch("/addReview/{id}", guideHandler.AddReview)

	// --- パッケージ ---
	r.Get("/packages", packageHandler.List)
	r.With(auth, admin).Post("/packages", packageHandler.Create)
	r.Get("/packages/{id}", packageHandler.Get)
	r.Get("/packages-total", packageHandler.Count)

	// --- ウィッシュリスト ---
	r.Get("/wishlist", wishlistHandler.List)
	r.With(auth).Post("/wishlist", wishlistHandler.Add)
	r.With(auth, ownerByEmail).Get("/wishlist/{email}", wishlistHandler.ListByEmail)
	r.With(auth).Delete("/wishlist/{id}", wishlistHandler.Delete)
	r.With(auth, ownerByEmail).Get("/wishlist-total/{email}", wishlistHandler.CountByEmail)

	// --- 予約 ---
	r.With(auth, admin).Get("/bookings", bookingHandler.ListAll)
	r.With(auth, admin).Get("/bookings-total", bookingHandler.CountAll)
	r.With(auth).Post("/bookings", bookingHandler.Add)
	r.With(auth, ownerByEmail).Get("/booking/{email}", bookingHandler.ListByTourist)
	r.With(auth, ownerByEmail).Get("/bookings-total/{email}", bookingHandler.CountByTourist)
	r.With(auth).Delete("/booking/{id}", bookingHandler.Delete)
	r.Patch("/booking/status/{id}", bookingHandler.UpdateStatus)
	r.With(auth, tourGuide).Get("/assigned-tours/{name}", bookingHandler.ListAssigned)
	r.With(auth, tourGuide).Get("/assigned-tours-total/{name}", bookingHandler.CountAssigned)

	// --- 旅行記 ---
	r.Get("/stories", storyHandler.List)
	r.With(auth).Post("/stories", storyHandler.Create)
	r.Get("/stories/{id}", storyHandler.Get)
	r.Get("/stories-total", storyHandler.Count)

	return r
}
