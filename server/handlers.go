package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/peek4c/peek4c/collector/clients"
	"github.com/peek4c/peek4c/feed"
	"github.com/peek4c/peek4c/model"
	"github.com/peek4c/peek4c/server/middlewares"
	"github.com/peek4c/peek4c/store"
	"github.com/peek4c/peek4c/utils"
	Logger "github.com/peek4c/peek4c/utils/log"
	"github.com/pkg/errors"
)

const (
	defaultHistoryLimit = 50
	defaultBoardsLimit  = 10
)

// fail maps err to a status and error code and aborts the request.
func fail(c *gin.Context, err error) {
	var statusErr *clients.StatusError
	switch {
	case errors.Is(err, store.ErrNotFound):
		middlewares.Abort(c, http.StatusNotFound, middlewares.ErrorNotFound, err.Error())
	case errors.Is(err, store.ErrEmptyKeyword):
		middlewares.Abort(c, http.StatusBadRequest, middlewares.ErrorInvalidParams, err.Error())
	case errors.As(err, &statusErr):
		middlewares.Abort(c, http.StatusBadGateway, middlewares.ErrorUpstream, err.Error())
	default:
		Logger.Log.WithError(err).Errorf("%s %s failed", c.Request.Method, c.Request.URL.Path)
		middlewares.Abort(c, http.StatusInternalServerError, middlewares.ErrorInternal, err.Error())
	}
}

func invalid(c *gin.Context, msg string) {
	middlewares.Abort(c, http.StatusBadRequest, middlewares.ErrorInvalidParams, msg)
}

func threadParams(c *gin.Context) (string, int64, bool) {
	no, err := strconv.ParseInt(c.Param("no"), 10, 64)
	if err != nil || no <= 0 {
		invalid(c, "invalid post number "+c.Param("no"))
		return "", 0, false
	}
	return c.Param("board"), no, true
}

func intQuery(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		invalid(c, "invalid "+key+" "+raw)
		return 0, false
	}
	return v, true
}

func excludeQuery(c *gin.Context) ([]int64, bool) {
	nos, err := utils.ParseInt64List(c.Query("exclude"))
	if err != nil {
		invalid(c, "invalid exclude list")
		return nil, false
	}
	return nos, true
}

func bindPost(c *gin.Context) (*model.Post, bool) {
	var post model.Post
	if err := c.ShouldBindJSON(&post); err != nil {
		invalid(c, err.Error())
		return nil, false
	}
	if post.No <= 0 || post.Board == "" {
		invalid(c, "post needs board and no")
		return nil, false
	}
	return &post, true
}

// ListBoards refreshes the boards cache from the remote and falls back to
// the cached list when the remote is unavailable.
func (h *handler) ListBoards(c *gin.Context) {
	boards, err := h.Boards.FetchBoards(c.Request.Context())
	if err == nil {
		h.Store.SaveBoards(boards)
		c.JSON(http.StatusOK, boards)
		return
	}
	Logger.Log.WithError(err).Warn("cannot fetch boards, serving cached list")
	cached, cacheErr := h.Store.ListBoards()
	if cacheErr != nil || len(cached) == 0 {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cached)
}

func (h *handler) Catalog(c *gin.Context) {
	page, err := h.Feed.FetchCatalog(c.Request.Context(), c.Param("board"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *handler) Recommended(c *gin.Context) {
	limit, ok := intQuery(c, "limit", h.Feed.PageSize())
	if !ok {
		return
	}
	exclude, ok := excludeQuery(c)
	if !ok {
		return
	}
	items, err := h.Feed.GetRecommendedItems(c.Request.Context(), c.Param("board"), limit, exclude)
	if err != nil {
		fail(c, err)
		return
	}
	if items == nil {
		items = []*model.Post{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *handler) Thread(c *gin.Context) {
	board, no, ok := threadParams(c)
	if !ok {
		return
	}
	view, err := h.Feed.LoadThread(c.Request.Context(), board, no)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handler) ViewedPosts(c *gin.Context) {
	board, no, ok := threadParams(c)
	if !ok {
		return
	}
	viewed, err := h.Store.GetViewedPosts(board, no)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewed)
}

// FollowFeed serves follow mode. Without exclude it is the first page,
// otherwise the next one.
func (h *handler) FollowFeed(c *gin.Context) {
	limit, ok := intQuery(c, "limit", h.Feed.PageSize())
	if !ok {
		return
	}
	exclude, ok := excludeQuery(c)
	if !ok {
		return
	}
	safeOnly := c.Query("safeOnly") == "true"

	var page feed.Page
	var err error
	if len(exclude) == 0 {
		page, err = h.Feed.LoadFollowFeed(c.Request.Context(), safeOnly, limit)
	} else {
		page, err = h.Feed.MoreFollowFeed(c.Request.Context(), safeOnly, limit, exclude)
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *handler) StaleFollowed(c *gin.Context) {
	posts, err := h.Feed.ListStaleFollowed()
	h.respondPosts(c, posts, err)
}

func (h *handler) RefreshFollowed(c *gin.Context) {
	n, err := h.Feed.RefreshFollowedThreads(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": n})
}

// MediaURI resolves ?url= to a local file when it can be downloaded, the
// remote url otherwise. high=true takes the high priority lane and context
// labels the request for DELETE /media/queue/:context.
func (h *handler) MediaURI(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		invalid(c, "missing url")
		return
	}
	uri := h.Media.GetMediaURI(c.Request.Context(), url, c.Query("high") == "true", c.Query("context"))
	c.JSON(http.StatusOK, gin.H{"uri": uri})
}

func (h *handler) CancelMedia(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cancelled": h.Media.CancelByContext(c.Param("context"))})
}

func (h *handler) ClearMediaCache(c *gin.Context) {
	if err := h.Media.ClearCache(); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type togglePost func(ctx context.Context, post *model.Post) (bool, error)

func (h *handler) toggle(c *gin.Context, fn togglePost) {
	post, ok := bindPost(c)
	if !ok {
		return
	}
	active, err := fn(c.Request.Context(), post)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": active})
}

func (h *handler) ToggleStar(c *gin.Context) {
	h.toggle(c, h.Ledger.ToggleStar)
}

func (h *handler) ToggleFollow(c *gin.Context) {
	h.toggle(c, h.Ledger.ToggleFollow)
}

func (h *handler) ToggleBlock(c *gin.Context) {
	h.toggle(c, h.Ledger.ToggleBlock)
}

func (h *handler) PostStatus(c *gin.Context) {
	board, no, ok := threadParams(c)
	if !ok {
		return
	}
	status, err := h.Ledger.Status(board, no)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *handler) respondPosts(c *gin.Context, posts []*model.Post, err error) {
	if err != nil {
		fail(c, err)
		return
	}
	if posts == nil {
		posts = []*model.Post{}
	}
	c.JSON(http.StatusOK, posts)
}

func (h *handler) ListStars(c *gin.Context) {
	posts, err := h.Ledger.ListStars()
	h.respondPosts(c, posts, err)
}

func (h *handler) ListFollowing(c *gin.Context) {
	posts, err := h.Ledger.ListFollowing()
	h.respondPosts(c, posts, err)
}

func (h *handler) ListBlocked(c *gin.Context) {
	posts, err := h.Ledger.ListBlocked()
	h.respondPosts(c, posts, err)
}

func (h *handler) AddHistory(c *gin.Context) {
	post, ok := bindPost(c)
	if !ok {
		return
	}
	if err := h.Feed.MarkViewed(c.Request.Context(), post); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) ListHistory(c *gin.Context) {
	limit, ok := intQuery(c, "limit", defaultHistoryLimit)
	if !ok {
		return
	}
	offset, ok := intQuery(c, "offset", 0)
	if !ok {
		return
	}
	posts, err := h.Store.GetHistory(limit, offset, c.Query("opOnly") == "true", c.Query("board"))
	h.respondPosts(c, posts, err)
}

func (h *handler) HistoryBoards(c *gin.Context) {
	limit, ok := intQuery(c, "limit", defaultBoardsLimit)
	if !ok {
		return
	}
	boards, err := h.Store.GetHistoryBoards(limit)
	if err != nil {
		fail(c, err)
		return
	}
	if boards == nil {
		boards = []store.BoardCount{}
	}
	c.JSON(http.StatusOK, boards)
}

func (h *handler) ClearHistory(c *gin.Context) {
	if err := h.Store.ClearHistory(); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) ListKeywords(c *gin.Context) {
	kws, err := h.Store.ListBlockedKeywords()
	if err != nil {
		fail(c, err)
		return
	}
	if kws == nil {
		kws = []string{}
	}
	c.JSON(http.StatusOK, kws)
}

type keywordBody struct {
	Keyword string `json:"keyword"`
}

func (h *handler) AddKeyword(c *gin.Context) {
	var body keywordBody
	if err := c.ShouldBindJSON(&body); err != nil {
		invalid(c, err.Error())
		return
	}
	if err := h.Store.AddBlockedKeyword(body.Keyword); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) RemoveKeyword(c *gin.Context) {
	if err := h.Store.RemoveBlockedKeyword(c.Query("keyword")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) ResetKeywords(c *gin.Context) {
	if err := h.Store.ResetBlockedKeywords(); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) ClearKeywords(c *gin.Context) {
	if err := h.Store.ClearBlockedKeywords(); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) GetConsent(c *gin.Context) {
	accepted, err := h.Store.HasAcceptedTerms()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": accepted})
}

type consentBody struct {
	Version string `json:"version"`
}

func (h *handler) AcceptConsent(c *gin.Context) {
	var body consentBody
	// An empty body accepts the current version.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			invalid(c, err.Error())
			return
		}
	}
	if err := h.Store.AcceptTerms(body.Version); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) GetConfig(c *gin.Context) {
	key := c.Param("key")
	value, ok, err := h.Store.GetConfig(key)
	if err != nil {
		fail(c, err)
		return
	}
	if !ok {
		middlewares.Abort(c, http.StatusNotFound, middlewares.ErrorNotFound, "no config "+key)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}

type configBody struct {
	Value string `json:"value"`
}

func (h *handler) SetConfig(c *gin.Context) {
	var body configBody
	if err := c.ShouldBindJSON(&body); err != nil {
		invalid(c, err.Error())
		return
	}
	if err := h.Store.SetConfig(c.Param("key"), body.Value); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) ClearCache(c *gin.Context) {
	if err := h.Store.ClearCache(); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Reset wipes every table, re-seeds the default keywords and drops the media
// cache.
func (h *handler) Reset(c *gin.Context) {
	if err := h.Store.ResetAllData(); err != nil {
		fail(c, err)
		return
	}
	if err := h.Media.ClearCache(); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
