// Package server exposes the feed engine, the ledger and the local store over
// HTTP for the client UI.
package server

import (
	"context"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/peek4c/peek4c/collector/media"
	"github.com/peek4c/peek4c/events"
	"github.com/peek4c/peek4c/feed"
	"github.com/peek4c/peek4c/ledger"
	"github.com/peek4c/peek4c/model"
	"github.com/peek4c/peek4c/server/middlewares"
	"github.com/peek4c/peek4c/store"
)

// BoardSource is the remote board list.
type BoardSource interface {
	FetchBoards(ctx context.Context) ([]model.BoardInfo, error)
}

type Deps struct {
	Store  *store.Store
	Feed   *feed.Engine
	Ledger *ledger.Ledger
	Media  *media.Scheduler
	Boards BoardSource
	Hub    *events.FollowHub
	Statsd statsd.ClientInterface

	// Gate the feed routes behind accepted terms.
	RequireConsent bool
	// Served under /media/files when set.
	MediaDir string
}

type handler struct {
	Deps
}

// NewRouter wires every route. Feed routes sit behind the consent gate when
// it is enabled; ledger, settings and consent routes never do.
func NewRouter(d Deps) *gin.Engine {
	h := &handler{Deps: d}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middlewares.RequestLogger(d.Statsd))
	router.Use(cors.Default())

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	router.GET("/consent", h.GetConsent)
	router.POST("/consent", h.AcceptConsent)

	feedRoutes := router.Group("/")
	if d.RequireConsent {
		feedRoutes.Use(middlewares.RequireConsent(d.Store))
	}
	AddBoardRoutes(feedRoutes, h)
	AddFollowRoutes(feedRoutes, h)
	AddMediaRoutes(feedRoutes, h, d.MediaDir)

	AddPostRoutes(router.Group("/"), h)
	AddHistoryRoutes(router.Group("/history"), h)
	AddKeywordRoutes(router.Group("/keywords"), h)

	router.GET("/config/:key", h.GetConfig)
	router.PUT("/config/:key", h.SetConfig)
	router.DELETE("/cache", h.ClearCache)
	router.POST("/reset", h.Reset)
	router.GET("/events/follow", h.FollowEvents)

	return router
}

func AddBoardRoutes(rg *gin.RouterGroup, h *handler) {
	boards := rg.Group("/boards")

	boards.GET("", h.ListBoards)
	boards.GET("/:board/catalog", h.Catalog)
	boards.GET("/:board/recommended", h.Recommended)
	boards.GET("/:board/threads/:no", h.Thread)
	boards.GET("/:board/threads/:no/viewed", h.ViewedPosts)
}

func AddFollowRoutes(rg *gin.RouterGroup, h *handler) {
	follow := rg.Group("/follow")

	follow.GET("/feed", h.FollowFeed)
	follow.GET("/stale", h.StaleFollowed)
	follow.POST("/refresh", h.RefreshFollowed)
}

func AddMediaRoutes(rg *gin.RouterGroup, h *handler, dir string) {
	m := rg.Group("/media")

	m.GET("", h.MediaURI)
	m.DELETE("/queue/:context", h.CancelMedia)
	m.DELETE("/cache", h.ClearMediaCache)
	if dir != "" {
		m.Static("/files", dir)
	}
}

func AddPostRoutes(rg *gin.RouterGroup, h *handler) {
	rg.POST("/posts/star", h.ToggleStar)
	rg.POST("/posts/follow", h.ToggleFollow)
	rg.POST("/posts/block", h.ToggleBlock)
	rg.GET("/posts/:board/:no/status", h.PostStatus)

	rg.GET("/stars", h.ListStars)
	rg.GET("/following", h.ListFollowing)
	rg.GET("/blocked", h.ListBlocked)
}

func AddHistoryRoutes(rg *gin.RouterGroup, h *handler) {
	rg.POST("", h.AddHistory)
	rg.GET("", h.ListHistory)
	rg.GET("/boards", h.HistoryBoards)
	rg.DELETE("", h.ClearHistory)
}

func AddKeywordRoutes(rg *gin.RouterGroup, h *handler) {
	rg.GET("", h.ListKeywords)
	rg.POST("", h.AddKeyword)
	rg.DELETE("", h.RemoveKeyword)
	rg.POST("/reset", h.ResetKeywords)
	rg.DELETE("/all", h.ClearKeywords)
}
