// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/hkg945/edgeflow/docs" // swagger spec registration
	"github.com/hkg945/edgeflow/internal/config"
	"github.com/hkg945/edgeflow/internal/domain"
	"github.com/hkg945/edgeflow/internal/http/handlers"
	"github.com/hkg945/edgeflow/internal/http/middleware"
	"github.com/hkg945/edgeflow/internal/repo"
	"github.com/hkg945/edgeflow/internal/services"
)

// convRepoShim adapts the repository free functions to the
// services.ConversationRepo interface expected by the ChatService. This keeps
// services decoupled from the concrete repo package while reusing existing
// functions.
type convRepoShim struct{}

// CreateConversation proxies repo.CreateConversation.
func (convRepoShim) CreateConversation(ctx context.Context, db *gorm.DB, c *domain.Conversation) error {
	return repo.CreateConversation(ctx, db, c)
}

// GetConversation proxies repo.GetConversation.
func (convRepoShim) GetConversation(ctx context.Context, db *gorm.DB, id string) (*domain.Conversation, error) {
	return repo.GetConversation(ctx, db, id)
}

// ListConversations proxies repo.ListConversations.
func (convRepoShim) ListConversations(ctx context.Context, db *gorm.DB) ([]domain.Conversation, error) {
	return repo.ListConversations(ctx, db)
}

// AppendMessage proxies repo.AppendMessage.
func (convRepoShim) AppendMessage(db *gorm.DB, conversationID, role, content string, timestamp int64) (*domain.Message, error) {
	return repo.AppendMessage(db, conversationID, role, content, timestamp)
}

// TouchConversation proxies repo.TouchConversation.
func (convRepoShim) TouchConversation(db *gorm.DB, id string, lastMessageAt int64, fromUser bool) error {
	return repo.TouchConversation(db, id, lastMessageAt, fromUser)
}

// UpdateConversationIdentity proxies repo.UpdateConversationIdentity.
func (convRepoShim) UpdateConversationIdentity(db *gorm.DB, id, userName string, userCreatedAt *int64, userPlan string) error {
	return repo.UpdateConversationIdentity(db, id, userName, userCreatedAt, userPlan)
}

// MarkConversationRead proxies repo.MarkConversationRead.
func (convRepoShim) MarkConversationRead(ctx context.Context, db *gorm.DB, id string) error {
	return repo.MarkConversationRead(ctx, db, id)
}

// postRepoShim adapts the repository free functions to the services.PostRepo
// interface expected by the BlogService.
type postRepoShim struct{}

// CreatePost proxies repo.CreatePost.
func (postRepoShim) CreatePost(ctx context.Context, db *gorm.DB, p *domain.BlogPost) error {
	return repo.CreatePost(ctx, db, p)
}

// GetPost proxies repo.GetPost.
func (postRepoShim) GetPost(ctx context.Context, db *gorm.DB, slug string) (*domain.BlogPost, error) {
	return repo.GetPost(ctx, db, slug)
}

// ListPosts proxies repo.ListPosts.
func (postRepoShim) ListPosts(ctx context.Context, db *gorm.DB) ([]domain.BlogPost, error) {
	return repo.ListPosts(ctx, db)
}

// ListPostsPage proxies repo.ListPostsPage (pagination support).
func (postRepoShim) ListPostsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.BlogPost, error) {
	return repo.ListPostsPage(ctx, db, offset, limit)
}

// CountPosts proxies repo.CountPosts (pagination support).
func (postRepoShim) CountPosts(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountPosts(ctx, db)
}

// UpdatePost proxies repo.UpdatePost.
func (postRepoShim) UpdatePost(ctx context.Context, db *gorm.DB, p *domain.BlogPost) error {
	return repo.UpdatePost(ctx, db, p)
}

// DeletePost proxies repo.DeletePost.
func (postRepoShim) DeletePost(ctx context.Context, db *gorm.DB, slug string) error {
	return repo.DeletePost(ctx, db, slug)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter, gzip
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per session/IP, bypass on replay)
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction. Session ids are visitor identity;
	// keep them out of access logs entirely.
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			middleware.HeaderChatSession,
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB) and response compression. Markdown
	// blog bodies compress well; /metrics stays uncompressed for scrapers.
	r.Use(limitBody(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, conversationID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, conversationID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 8) Token-bucket rate limiter per session/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyBySessionOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{
		"Origin", "Content-Type", "Accept", "Authorization",
		middleware.HeaderChatSession, middleware.HeaderIdempotencyKey,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "ETag", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "ETag", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS).
	// NoStore stays off so the admin inbox ETag handshake keeps working.
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Swagger UI (off by default; enable via SWAGGER_ENABLED)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db
	chatSvc := services.NewChatService(db, convRepoShim{})
	if cfg.ChatMaxContentRunes > 0 {
		chatSvc.MaxContentRunes = cfg.ChatMaxContentRunes
	}
	blogSvc := services.NewBlogService(db, postRepoShim{})
	h := handlers.New(chatSvc, blogSvc)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Widget-facing chat endpoints
		api.GET("/chat/history", h.ChatHistory)
		api.POST("/chat/send", h.ChatSend)

		// Admin inbox
		admin := api.Group("/admin/chat")
		{
			admin.GET("/conversations", h.ListConversations)
			admin.GET("/conversations/:id", h.GetConversation)
			admin.POST("/reply", h.Reply)
		}

		// Blog catalogue and search
		api.GET("/blog", h.ListPosts)
		api.POST("/blog", h.CreatePost)
		api.GET("/blog/search", h.SearchPosts)
		api.GET("/blog/:slug", h.GetPost)
		api.PUT("/blog/:slug", h.UpdatePost)
		api.DELETE("/blog/:slug", h.DeletePost)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
