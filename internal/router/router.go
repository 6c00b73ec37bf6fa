package router

import (
	"plugindir/internal/cache"
	"plugindir/internal/config"
	"plugindir/internal/db"
	"plugindir/internal/handlers"
	"plugindir/internal/middleware"
	"plugindir/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

// Deps is everything the HTTP layer needs, built once in main.
type Deps struct {
	Config   *config.Config
	Subjects *db.SubjectRepository
	Cache    cache.Store

	Identities *services.IdentityResolver
	Views      *services.ViewService
	Votes      *services.VoteService
	Comments   *services.CommentService
}

// NewDeps wires the engagement services over one cache and one document store.
func NewDeps(cfg *config.Config, subjects *db.SubjectRepository, store cache.Store) *Deps {
	identities := services.NewIdentityResolver(cfg.Cookies)
	limiter := services.NewRateLimiter(store)

	return &Deps{
		Config:     cfg,
		Subjects:   subjects,
		Cache:      store,
		Identities: identities,
		Views:      services.NewViewService(store, subjects, cfg.Engagement),
		Votes:      services.NewVoteService(store, subjects, identities, limiter, cfg.Engagement),
		Comments:   services.NewCommentService(store, subjects, identities, limiter, cfg.Engagement),
	}
}

// New builds the gin engine with sessions, visitor cookies and the route table.
func New(d *Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())

	store := cookie.NewStore([]byte(d.Config.Server.SessionSecret))
	r.Use(sessions.Sessions(d.Config.Cookies.SessionName, store))
	r.Use(middleware.LoadVisitor(d.Config.Cookies))

	RegisterRoutes(r, d)
	return r
}

func RegisterRoutes(r *gin.Engine, d *Deps) {
	cookies := d.Config.Cookies

	// Handlers
	subjectHandler := handlers.NewSubjectHandler(d.Subjects)
	viewHandler := handlers.NewViewHandler(d.Views, d.Identities, cookies)
	voteHandler := handlers.NewVoteHandler(d.Votes, cookies)
	commentHandler := handlers.NewCommentHandler(d.Comments, cookies)
	healthHandler := handlers.NewHealthHandler(d.Subjects, d.Cache)

	r.GET("/health", healthHandler.Check) // 健康检查

	api := r.Group("/api/subjects")
	{
		api.POST("", subjectHandler.Create) // 创建条目
		api.GET("/:id", subjectHandler.Get) // 条目聚合计数

		api.POST("/:id/views", viewHandler.Record) // 记录浏览
		api.GET("/:id/stats", viewHandler.Stats)   // 日/周浏览统计

		api.GET("/:id/vote", voteHandler.State)     // 当前投票状态
		api.POST("/:id/vote", voteHandler.Vote)     // 赞/踩 (重复则取消)
		api.DELETE("/:id/vote", voteHandler.Remove) // 取消投票

		api.POST("/:id/comments", commentHandler.Create) // 发表评论
		api.GET("/:id/comments", commentHandler.List)    // 评论列表
	}
}
