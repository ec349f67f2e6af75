// Package routesはroutingを行います。
package routes

import (
	"database/sql"
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"task-tracker/backend/internal/cache"
	"task-tracker/backend/internal/config"
	"task-tracker/backend/internal/handlers"
	"task-tracker/backend/internal/repositories"
	"task-tracker/backend/internal/services"
)

// Options はルーターの依存関係です。TaskCacheとCacheはnilでも構いません。
type Options struct {
	Config         config.Config
	UserRepo       repositories.UserRepository
	TaskRepo       repositories.TaskRepository
	ResetTokenRepo repositories.ResetTokenRepository
	Mailer         services.Mailer
	TaskCache      services.TaskListCache
	DB             handlers.DBPinger
	Cache          handlers.CachePinger
}

// SetupRouter はMySQLと(設定されていれば)Redisを使う本番用のルーターを作成します。
func SetupRouter(cfg config.Config, db *sql.DB, rdb *redis.Client) *gin.Engine {
	opts := Options{
		Config:         cfg,
		UserRepo:       repositories.NewUserRepository(db),
		TaskRepo:       repositories.NewTaskRepository(db),
		ResetTokenRepo: repositories.NewResetTokenRepository(db),
		Mailer:         services.NewMailer(cfg.Mail),
		DB:             db,
	}
	if rdb != nil {
		taskCache := cache.NewTaskCache(rdb, cfg.Redis.TTL)
		opts.TaskCache = taskCache
		opts.Cache = taskCache
		log.Printf("task list cache enabled (ttl %s)", cfg.Redis.TTL)
	}
	return NewRouter(opts)
}

// NewRouter はGinルーターをセットアップし、すべてのエンドポイントを登録します。
func NewRouter(opts Options) *gin.Engine {
	cfg := opts.Config
	r := gin.Default()
	r.Use(RequestID())

	// CORS対策
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.HTTP.AllowOrigins
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader}
	corsConfig.ExposeHeaders = []string{requestIDHeader}
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	// サービス
	userService := services.NewUserService(opts.UserRepo, opts.ResetTokenRepo, opts.Mailer, services.UserServiceOptions{
		UpdateLastLogin:    cfg.JWT.UpdateLastLogin,
		FrontendURL:        cfg.Mail.FrontendURL,
		ResetTokenLifetime: cfg.Mail.ResetTokenLifetime,
	})
	taskService := services.NewTaskService(opts.TaskRepo, opts.TaskCache, cfg.Pagination.PageSize)
	jwtService := services.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessLifetime)

	// ハンドラー
	userHandler := handlers.NewUserHandler(userService, jwtService)
	taskHandler := handlers.NewTaskHandler(taskService)
	healthHandler := handlers.NewHealthHandler(opts.DB, opts.Cache)

	// ルーティング
	r.GET("/health/", healthHandler.HealthHandler)

	auth := r.Group("/auth")
	{
		auth.POST("/register/", userHandler.RegisterHandler)
		auth.POST("/login/", userHandler.LoginHandler)
		auth.POST("/password/forgot/", userHandler.ForgotPasswordHandler)
		auth.POST("/password/reset/", userHandler.ResetPasswordHandler)
	}

	tasks := r.Group("/tasks")
	tasks.Use(AuthMiddleware(jwtService, userService))
	{
		tasks.GET("/", taskHandler.ListTasksHandler)
		tasks.POST("/", taskHandler.CreateTaskHandler)
		tasks.GET("/:id/", taskHandler.GetTaskHandler)
		tasks.PUT("/:id/", taskHandler.UpdateTaskHandler)
		tasks.PATCH("/:id/", taskHandler.UpdateTaskHandler)
		tasks.DELETE("/:id/", taskHandler.DeleteTaskHandler)
	}

	return r
}
