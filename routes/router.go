package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/driftline/driftline/config"
	"github.com/driftline/driftline/controllers"
	"github.com/driftline/driftline/events"
	"github.com/driftline/driftline/middleware"
	"github.com/driftline/driftline/repository"
	"github.com/driftline/driftline/services"
	"github.com/driftline/driftline/store"
	"github.com/driftline/driftline/utils"
)

// SetupRouter wires repositories, services, middlewares and controllers on
// top of the document store client.
func SetupRouter(sc store.Client, producer *events.Producer) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(utils.AccessLog())
	r.Use(utils.Recovery())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	memberships := repository.NewMembershipRepository(sc)
	communities := repository.NewCommunityRepository(sc)
	users := repository.NewUserRepository(sc)
	posts := repository.NewPostRepository(sc)
	votes := repository.NewVoteRepository(sc)

	counter := services.NewCounterReconciler(communities)
	membershipSvc := services.NewMembershipService(memberships, communities, users, counter, producer, utils.Sugar)
	voteSvc := services.NewVoteService(votes, posts, utils.Sugar)
	reconciler := services.NewReconciler(memberships, communities, producer, utils.Sugar)

	communityController := controllers.NewCommunityController(communities, membershipSvc)
	postController := controllers.NewPostController(posts, communities, users, voteSvc)
	adminController := controllers.NewAdminController(reconciler)

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")

	api.GET("/communities", communityController.ListCommunities)
	api.GET("/communities/:id", communityController.GetCommunity)
	api.GET("/communities/:id/members", communityController.ListMembers)
	api.GET("/communities/:id/membership", middleware.OptionalAuth(), communityController.MembershipStatus)
	api.GET("/posts", postController.ListPosts)
	api.GET("/posts/:id", postController.GetPost)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())
	protected.POST("/communities/:id/join", communityController.Join)
	protected.POST("/communities/:id/leave", communityController.Leave)
	protected.GET("/users/me/communities", communityController.MyCommunities)
	protected.POST("/posts", postController.CreatePost)
	protected.POST("/posts/:id/vote", postController.Vote)

	admin := api.Group("/admin")
	admin.Use(middleware.AuthRequired(), controllers.AdminRequired(), middleware.RateLimitMiddleware())
	admin.POST("/reconcile", adminController.ReconcileAll)
	admin.POST("/reconcile/:id", adminController.ReconcileOne)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
