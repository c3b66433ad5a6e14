package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"bossfit/internal/config"
	"bossfit/internal/jobs"
	"bossfit/internal/middleware"
	"bossfit/internal/repository"
	"bossfit/internal/service"
)

type Reaper interface {
	Run(ctx context.Context) (jobs.ReapResult, error)
}

// AvatarStore signs URLs for avatar images.
type AvatarStore interface {
	AvatarURL(ctx context.Context, avatar string) (string, error)
	Ping(ctx context.Context) error
}

// Deps are the collaborators built by cmd/api. Cache and Avatars may be nil.
type Deps struct {
	Services *service.Services
	Store    repository.Store
	Reaper   Reaper
	Cache    *redis.Client
	Avatars  AvatarStore
}

type HandlerSet struct {
	log     zerolog.Logger
	cfg     *config.AppConfig
	svc     *service.Services
	store   repository.Store
	reaper  Reaper
	cache   *redis.Client
	avatars AvatarStore
	cookie  middleware.CookieSettings
	limiter *middleware.RateLimiter
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, deps Deps) HandlerSet {
	return HandlerSet{
		log:     log,
		cfg:     cfg,
		svc:     deps.Services,
		store:   deps.Store,
		reaper:  deps.Reaper,
		cache:   deps.Cache,
		avatars: deps.Avatars,
		cookie: middleware.CookieSettings{
			Name:     cfg.Security.CookieName,
			Domain:   cfg.Security.CookieDomain,
			Secure:   cfg.Security.CookieSecure,
			SameSite: cfg.Security.SameSite(),
			TTL:      cfg.Security.TokenTTL,
		},
		limiter: middleware.NewRateLimiter(cfg.RateLimit),
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	router.POST("/register", middleware.RateLimit(h.limiter), h.RegisterUser)
	router.POST("/login", middleware.RateLimit(h.limiter), h.Login)

	authed := router.Group("")
	authed.Use(middleware.Auth(h.svc.Tokens, h.cookie))
	{
		authed.GET("/logout", h.Logout)
		authed.GET("/friends_list", h.FriendsList)
		authed.GET("/sessions", h.ListSessions)
		authed.GET("/sessions/:id", h.GetSession)
		authed.GET("/points", h.Points)
		authed.GET("/leaderboard", h.Leaderboard)
		authed.POST("/avatar", h.Avatar)

		mutating := authed.Group("")
		mutating.Use(middleware.RateLimit(h.limiter))
		mutating.POST("/add_friend", h.AddFriend)
		mutating.POST("/accept_friend", h.AcceptFriend)
		mutating.POST("/deny_friend", h.DenyFriend)
		mutating.POST("/unfriend", h.Unfriend)
		mutating.POST("/create_session", h.CreateSession)
		mutating.POST("/attack", h.Attack)
		mutating.POST("/buy", h.Buy)
	}

	admin := router.Group("/admin")
	admin.Use(middleware.RequireAdmin(h.cfg.Security.AdminJWTSecret))
	admin.POST("/reap", h.Reap)
}
