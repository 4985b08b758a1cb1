package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"comfygate/internal/apperr"
	"comfygate/internal/comfy"
	"comfygate/internal/config"
	"comfygate/internal/middleware"
	"comfygate/internal/models"
	"comfygate/internal/repository"
	"comfygate/internal/service"
	"comfygate/internal/storage"
)

type HandlerSet struct {
	log         zerolog.Logger
	cfg         *config.AppConfig
	db          *pgxpool.Pool
	cache       *redis.Client
	engine      *comfy.Client
	users       *repository.UserRepository
	authService *service.AuthService
	resources   *service.ResourceService
	generation  *service.GenerationService
}

func NewHandlerSet(
	log zerolog.Logger,
	db *pgxpool.Pool,
	cache *redis.Client,
	store *storage.ObjectStore,
	engine *comfy.Client,
	generator *comfy.Generator,
	cfg *config.AppConfig,
) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	resourceRepo := repository.NewResourceRepository(db)

	resources := service.NewResourceService(resourceRepo, store, log)
	generation := service.NewGenerationService(resources, generator, cache, log)
	auth := service.NewAuthService(userRepo, cfg, log)

	return HandlerSet{
		log:         log,
		cfg:         cfg,
		db:          db,
		cache:       cache,
		engine:      engine,
		users:       userRepo,
		authService: auth,
		resources:   resources,
		generation:  generation,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", h.RegisterUser)
	auth.POST("/login", h.Login)
	auth.GET("/me", middleware.Auth(h.cfg, h.users), h.Me)

	resources := v1.Group("/resources")
	resources.Use(middleware.Auth(h.cfg, h.users))
	resources.POST("", middleware.RequirePermission(middleware.ActionCreate), h.CreateResource)
	resources.GET("", middleware.RequirePermission(middleware.ActionRead), h.ListResources)
	resources.GET("/:resourceId", middleware.RequirePermission(middleware.ActionRead), h.ReadResource)
	resources.PUT("/:resourceId", middleware.RequirePermission(middleware.ActionUpdate), h.UpdateResource)
	resources.DELETE("/:resourceId", middleware.RequirePermission(middleware.ActionDelete), h.DeleteResource)

	v1.POST("/generate",
		middleware.Auth(h.cfg, h.users),
		middleware.RequirePermission(middleware.ActionCreate),
		middleware.RateLimit(h.cache, "generate", h.cfg.RateLimit.GenerateLimit, h.cfg.RateLimit.GenerateWindow),
		h.Generate,
	)

	admin := v1.Group("/admin")
	admin.Use(
		middleware.Auth(h.cfg, h.users),
		middleware.RequireRoles(models.UserRoleAdmin),
	)
	admin.GET("/users", h.AdminListUsers)
	admin.PATCH("/users/:userId/role", h.AdminUpdateUserRole)
}

// respondError logs the full cause and answers the client with the taxonomy
// status and a safe message. Timeouts get their own log label so operators
// can tell a slow engine from a broken one.
func (h HandlerSet) respondError(c *gin.Context, err error, context string) {
	event := h.log.Error()
	if apperr.KindOf(err) == apperr.KindTimeout {
		event = h.log.Warn().Str("label", "generation_timeout")
	}
	event.Err(err).
		Str("kind", string(apperr.KindOf(err))).
		Str("path", c.Request.URL.Path).
		Msg(context)

	c.JSON(apperr.HTTPStatus(err), gin.H{"message": apperr.PublicMessage(err)})
}
