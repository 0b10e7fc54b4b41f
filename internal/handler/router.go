package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wearly/wearly/internal/metrics"
	"github.com/wearly/wearly/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	MetricsGatherer   prometheus.Gatherer // nilの場合は/metricsを公開しない
	HealthChecker     HealthChecker       // nilの場合はDB疎通を確認しない
	Authenticator     middleware.TokenAuthenticator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 画像の相対参照を絶対URLに変換する基準URL
	BaseURL string

	// 認証・ユーザー
	AuthService    AuthServiceInterface
	UserService    UserServiceInterface
	ProfileService ProfileServiceInterface

	// クローゼット
	GarmentService GarmentServiceInterface

	// おすすめ
	RecommendationService RecommendationServiceInterface
	StylePreferences      StylePreferenceLister

	// コンパニオン端末
	Devices DeviceRegistrar
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → Auth → RateLimit(GeneralMiddleware)
//
// 認証ルート（/auth/*）と端末チャネル（/ws/device）は認証ミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService)
	userHandler := NewUserHandler(deps.UserService, deps.ProfileService)
	garmentHandler := NewGarmentHandler(deps.GarmentService)
	recHandler := NewRecommendationHandler(deps.RecommendationService, deps.BaseURL)
	prefHandler := NewPreferenceHandler(deps.StylePreferences)
	deviceHandler := NewDeviceHandler(deps.Authenticator, deps.Devices, deps.CORSAllowedOrigin)

	// --- 認証不要のルート ---

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
	})

	r.Get("/health", NewHealthHandler(deps.HealthChecker).Check)

	// トークンはクエリで受け取り、ハンドラー内で検証する
	r.Get("/ws/device", deviceHandler.Connect)

	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.Authenticator))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ユーザー管理
		r.Route("/api/users/me", func(r chi.Router) {
			r.Get("/", userHandler.Me)
			r.Delete("/", userHandler.Withdraw)
			r.Put("/preferred-style", userHandler.UpdatePreferredStyle)
		})

		// クローゼット
		r.Route("/api/garments", func(r chi.Router) {
			// POST /api/garments - 衣服登録（登録専用レート制限を追加）
			r.With(deps.RateLimiter.GarmentRegistrationMiddleware()).Post("/", garmentHandler.CreateGarment)
			r.Get("/", garmentHandler.ListGarments)

			r.Route("/{id}", func(r chi.Router) {
				r.Patch("/", garmentHandler.UpdateGarment)
				r.Delete("/", garmentHandler.DeleteGarment)
			})
		})

		// おすすめ
		r.Route("/api/recommendations", func(r chi.Router) {
			r.Get("/", recHandler.GetRecommendation)
			r.Post("/feedback", recHandler.SubmitFeedback)
			r.Get("/current", recHandler.GetCurrent)
		})

		r.Get("/api/preferences/styles", prefHandler.ListStyles)
	})

	return r
}
