package devapi

import (
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/MrEthical07/goTodo/internal/rate"
	"github.com/MrEthical07/goTodo/jwt"
	"github.com/MrEthical07/goTodo/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config configures a [Server].
type Config struct {
	JWT   *jwt.Manager
	Redis redis.UniversalClient

	// KeyPrefix namespaces every Redis key. Default "gotodo-dev".
	KeyPrefix  string
	RefreshTTL time.Duration
	// CommonLimit caps the to-do list of COMMON users; 0 disables the cap.
	CommonLimit int
	// AllowOrigins enables CORS for browser clients when non-empty.
	AllowOrigins []string
	Release      bool
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	Limits     rate.Config
	Logger     *zap.Logger
}

// Server serves the to-do and auth endpoints.
type Server struct {
	config   Config
	jwt      *jwt.Manager
	state    *state
	sessions *sessionStore
	limiter  *rate.Limiter
	logger   *zap.Logger
	router   *gin.Engine
}

// New validates cfg and builds the router.
func New(cfg Config) (*Server, error) {
	if cfg.JWT == nil {
		return nil, errors.New("devapi: JWT manager is required")
	}
	if cfg.Redis == nil {
		return nil, errors.New("devapi: redis client is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "gotodo-dev"
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 14 * 24 * time.Hour
	}
	if cfg.Limits.Prefix == "" {
		cfg.Limits.Prefix = cfg.KeyPrefix
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	s := &Server{
		config: cfg,
		jwt:    cfg.JWT,
		state:  newState(cfg.BcryptCost),
		sessions: &sessionStore{
			redis:  cfg.Redis,
			prefix: cfg.KeyPrefix,
			ttl:    cfg.RefreshTTL,
		},
		limiter: rate.New(cfg.Redis, cfg.Limits),
		logger:  cfg.Logger.Named("devapi"),
	}
	s.router = s.setupRouter()
	return s, nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() *gin.Engine {
	if s.config.Release {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(s.requestLogger())
	r.Use(s.recovery())
	if len(s.config.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  s.config.AllowOrigins,
			AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Authorization", "Content-Type", "X-Request-ID"},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "up"})
	})

	guard := middleware.GinGuard(s.jwt)

	auth := r.Group("/api/auth")
	{
		auth.POST("", s.signUp)
		auth.GET("/check", s.checkEmail)
		auth.POST("/signin", s.signIn)
		auth.POST("/refresh", s.refresh)
		auth.GET("/logout", guard, s.logout)
		auth.PUT("/promote", guard, s.promote)
	}

	todos := r.Group("/api/todos", guard)
	{
		todos.GET("", s.listTodos)
		todos.POST("", s.createTodo)
		todos.DELETE("/:id", s.deleteTodo)
		todos.PATCH("", s.checkTodo)
		todos.PUT("", s.checkTodo)
	}

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetHeader("X-Request-ID")),
		)
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered", zap.Any("panic", err), zap.ByteString("stack", debug.Stack()))
				abort(c, http.StatusInternalServerError, msgInternal)
			}
		}()
		c.Next()
	}
}

// claims returns the verified caller. Routes without the guard never call it.
func claims(c *gin.Context) *jwt.AccessClaims {
	cl, _ := middleware.GinClaims(c)
	return cl
}
