// Package feed assembles what the user scrolls through: the catalog of a
// board, mixed recommendations, and the unread replies of followed threads.
package feed

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/peek4c/peek4c/collector"
	"github.com/peek4c/peek4c/model"
	"github.com/peek4c/peek4c/moderation"
	"github.com/peek4c/peek4c/store"
	Logger "github.com/peek4c/peek4c/utils/log"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"
)

const (
	// FollowBoard is the pseudo board id clients use for follow mode.
	FollowBoard = "__FOLLOW__"

	// TopicThreadRefreshed carries one ThreadRefreshed per followed thread
	// refresh attempt.
	TopicThreadRefreshed = "thread.refreshed"

	refreshKey = "followed"
)

type EmptyReason string

const (
	EmptyNone          EmptyReason = ""
	EmptyNoFollows     EmptyReason = "no_follows"
	EmptyNothingUnread EmptyReason = "nothing_unread"
)

type Page struct {
	Items []*model.Post `json:"items"`
	// Set only when Items is empty in follow mode.
	EmptyReason EmptyReason `json:"emptyReason,omitempty"`
}

// Remote is the part of the board api the engine reads.
type Remote interface {
	FetchCatalog(ctx context.Context, board string) ([]*model.Post, error)
	FetchThread(ctx context.Context, board string, no int64) ([]*model.Post, error)
}

type Config struct {
	PageSize int
	// A followed thread is refreshed once its last fetch is older than this.
	FollowStaleAfter time.Duration
}

// ThreadRefreshed is the payload published on TopicThreadRefreshed.
type ThreadRefreshed struct {
	Board string `json:"board"`
	No    int64  `json:"no"`
	Saved int    `json:"saved"`
	Error string `json:"error,omitempty"`
}

type Engine struct {
	store    *store.Store
	remote   Remote
	filter   *moderation.Filter
	throttle *collector.Throttle
	// Optional, nil disables refresh events.
	publisher message.Publisher
	loader    *ReplyLoader
	cfg       Config
	now       func() time.Time

	refreshes singleflight.Group
	// Bounds background refreshes, ended by Shutdown.
	life context.Context
	stop context.CancelFunc

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewEngine(
	s *store.Store,
	remote Remote,
	filter *moderation.Filter,
	throttle *collector.Throttle,
	publisher message.Publisher,
	cfg Config,
) *Engine {
	e := &Engine{
		store:     s,
		remote:    remote,
		filter:    filter,
		throttle:  throttle,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	e.life, e.stop = context.WithCancel(context.Background())
	e.loader = NewReplyLoader(e.RefreshThread)
	return e
}

// Shutdown stops a running followed-thread refresh and waits for it to return.
// Refreshes requested afterwards end at once.
func (e *Engine) Shutdown() {
	e.stop()
	<-e.refreshes.DoChan(refreshKey, func() (interface{}, error) {
		return 0, nil
	})
}

// SetRand replaces the shuffling source.
func (e *Engine) SetRand(rng *rand.Rand) {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	e.rng = rng
}

// ReplyLoader returns the lazy loader fed by MarkViewed. It only makes
// progress while its RunModule is running.
func (e *Engine) ReplyLoader() *ReplyLoader {
	return e.loader
}

func (e *Engine) PageSize() int {
	return e.cfg.PageSize
}

// FetchCatalog is catalog mode: the board's current OPs that carry media, pass
// moderation, are not blocked and were never viewed. The survivors are stored.
// When none survive the page is filled with recommendations instead.
// FollowBoard switches to the first page of follow mode.
func (e *Engine) FetchCatalog(ctx context.Context, board string) (Page, error) {
	if board == FollowBoard {
		safeOnly, err := e.store.WorkSafeEnabled()
		if err != nil {
			return Page{}, err
		}
		return e.LoadFollowFeed(ctx, safeOnly, e.cfg.PageSize)
	}

	ops, err := e.remote.FetchCatalog(ctx, board)
	if err != nil {
		return Page{}, errors.Wrapf(err, "fetch catalog of %s", board)
	}

	withMedia := lo.Filter(ops, func(p *model.Post, _ int) bool { return p.HasMedia() })
	kept, err := e.filter.FilterPosts(ctx, withMedia)
	if err != nil {
		return Page{}, err
	}

	fresh, err := e.dropSeenAndBlocked(board, kept)
	if err != nil {
		return Page{}, err
	}
	if len(fresh) == 0 {
		Logger.Log.WithField("board", board).Info("catalog exhausted, serving recommendations")
		items, err := e.GetRecommendedItems(ctx, board, e.cfg.PageSize, nil)
		if err != nil {
			return Page{}, err
		}
		return Page{Items: items}, nil
	}

	e.store.SaveThreads(fresh)
	return Page{Items: fresh}, nil
}

func (e *Engine) dropSeenAndBlocked(board string, posts []*model.Post) ([]*model.Post, error) {
	nos := lo.Map(posts, func(p *model.Post, _ int) int64 { return p.No })
	seen, err := e.store.FilterHistoryNos(board, nos)
	if err != nil {
		return nil, err
	}
	blocked, err := e.store.FilterBlockedNos(board, nos)
	if err != nil {
		return nil, err
	}

	drop := lo.SliceToMap(lo.Union(seen, blocked), func(no int64) (int64, bool) { return no, true })
	return lo.Filter(posts, func(p *model.Post, _ int) bool { return !drop[p.No] }), nil
}

// GetRecommendedItems builds a page of stored, unread posts of board that
// mixes followed threads with everything else. See Mix for the ordering
// rules. The page is moderated again after mixing, so it may hold fewer than
// limit items. For FollowBoard it is the next page of follow mode.
func (e *Engine) GetRecommendedItems(ctx context.Context, board string, limit int, exclude []int64) ([]*model.Post, error) {
	if limit <= 0 {
		return nil, nil
	}
	if board == FollowBoard {
		safeOnly, err := e.store.WorkSafeEnabled()
		if err != nil {
			return nil, err
		}
		page, err := e.MoreFollowFeed(ctx, safeOnly, limit, exclude)
		if err != nil {
			return nil, err
		}
		return page.Items, nil
	}
	followedLimit, otherLimit := PoolLimits(limit)

	followed, err := e.store.ListFollowedCandidates(board, followedLimit, exclude)
	if err != nil {
		return nil, err
	}
	other, err := e.store.ListOtherCandidates(board, otherLimit, exclude)
	if err != nil {
		return nil, err
	}

	all := make([]*model.Post, 0, len(followed)+len(other))
	all = append(all, followed...)
	all = append(all, other...)
	if err := e.store.HydrateOPs(all); err != nil {
		return nil, err
	}

	e.rngMu.Lock()
	page := Recommend(e.rng, followed, other, limit)
	e.rngMu.Unlock()

	return e.filter.FilterPosts(ctx, page)
}

// MarkViewed records post in history and, for an OP whose replies were never
// fetched, queues the lazy reply load. Posts without media get a history row
// but no thread row, so they count as seen without showing up in GetHistory.
func (e *Engine) MarkViewed(ctx context.Context, post *model.Post) error {
	if err := e.store.AddToHistory(post); err != nil {
		return err
	}
	if !post.IsOP() {
		return nil
	}
	loaded, err := e.store.IsThreadFullyLoaded(post.Board, post.No)
	if err != nil {
		return err
	}
	if !loaded {
		e.loader.Enqueue(post.Board, post.No)
	}
	return nil
}

type ThreadView struct {
	Posts  []*model.Post  `json:"posts"`
	Viewed map[int64]bool `json:"viewed"`
}

// LoadThread returns a thread's stored posts, oldest first, with the viewed
// ones marked. A thread whose replies were never fetched is fetched first; if
// that fails the stored posts are still served.
func (e *Engine) LoadThread(ctx context.Context, board string, no int64) (*ThreadView, error) {
	loaded, err := e.store.IsThreadFullyLoaded(board, no)
	if err != nil {
		return nil, err
	}
	var fetchErr error
	if !loaded {
		fetchErr = e.RefreshThread(ctx, board, no)
		if fetchErr != nil {
			Logger.Log.WithError(fetchErr).WithFields(map[string]interface{}{
				"board": board,
				"no":    no,
			}).Warn("cannot fetch thread, serving stored posts")
		}
	}

	posts, viewed, err := e.store.GetThreadItemsWithHistory(board, no)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 && fetchErr != nil {
		return nil, fetchErr
	}
	posts, err = e.filter.FilterPosts(ctx, posts)
	if err != nil {
		return nil, err
	}
	return &ThreadView{Posts: posts, Viewed: viewed}, nil
}

// RefreshThread fetches one thread through the shared throttle, stores its
// moderated posts and stamps the OP's last fetch.
func (e *Engine) RefreshThread(ctx context.Context, board string, no int64) error {
	_, err := e.refreshThread(ctx, board, no)
	return err
}

func (e *Engine) refreshThread(ctx context.Context, board string, no int64) (int, error) {
	saved := 0
	err := e.throttle.Do(ctx, func(ctx context.Context) error {
		posts, err := e.remote.FetchThread(ctx, board, no)
		if err != nil {
			return err
		}
		posts, err = e.filter.FilterPosts(ctx, posts)
		if err != nil {
			return err
		}
		saved = e.store.SaveThreads(posts)
		return e.store.UpdateThreadLastFetched(board, no)
	})
	return saved, errors.Wrapf(err, "refresh thread %s/%d", board, no)
}

func (e *Engine) publishRefreshed(ev ThreadRefreshed) {
	if e.publisher == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		Logger.Log.WithError(err).Error("cannot encode refresh event")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := e.publisher.Publish(TopicThreadRefreshed, msg); err != nil {
		Logger.Log.WithError(err).Warn("cannot publish refresh event")
	}
}
