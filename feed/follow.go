package feed

import (
	"context"

	"github.com/peek4c/peek4c/model"
	Logger "github.com/peek4c/peek4c/utils/log"
	"golang.org/x/sync/singleflight"
)

// LoadFollowFeed returns the first page of follow mode: unread replies of
// followed threads, newest first. safeOnly restricts it to work-safe boards.
func (e *Engine) LoadFollowFeed(ctx context.Context, safeOnly bool, limit int) (Page, error) {
	return e.followPage(ctx, safeOnly, limit, nil)
}

// MoreFollowFeed returns the next follow mode page, skipping the post numbers
// the client already holds.
func (e *Engine) MoreFollowFeed(ctx context.Context, safeOnly bool, limit int, exclude []int64) (Page, error) {
	return e.followPage(ctx, safeOnly, limit, exclude)
}

// A short page starts a background refresh so the next page has more to
// show. An empty page waits for a refresh and looks once more.
func (e *Engine) followPage(ctx context.Context, safeOnly bool, limit int, exclude []int64) (Page, error) {
	if limit <= 0 {
		limit = e.cfg.PageSize
	}
	items, err := e.followedUnread(ctx, safeOnly, limit, exclude)
	if err != nil {
		return Page{}, err
	}
	if len(items) > 0 {
		if len(items) < limit {
			e.RefreshFollowedInBackground()
		}
		return Page{Items: items}, nil
	}

	hasFollows, err := e.store.HasFollowing()
	if err != nil {
		return Page{}, err
	}
	if !hasFollows {
		return Page{Items: []*model.Post{}, EmptyReason: EmptyNoFollows}, nil
	}

	if _, err := e.RefreshFollowedThreads(ctx); err != nil {
		if ctx.Err() != nil {
			return Page{}, ctx.Err()
		}
		Logger.Log.WithError(err).Warn("follow refresh failed, reading stored replies")
	}

	items, err = e.followedUnread(ctx, safeOnly, limit, exclude)
	if err != nil {
		return Page{}, err
	}
	if len(items) == 0 {
		return Page{Items: []*model.Post{}, EmptyReason: EmptyNothingUnread}, nil
	}
	return Page{Items: items}, nil
}

func (e *Engine) followedUnread(ctx context.Context, safeOnly bool, limit int, exclude []int64) ([]*model.Post, error) {
	posts, err := e.store.ListFollowedUnread(safeOnly, limit, exclude)
	if err != nil {
		return nil, err
	}
	return e.filter.FilterPosts(ctx, posts)
}

// ListStaleFollowed returns the followed OPs due for a refresh, most recently
// followed first.
func (e *Engine) ListStaleFollowed() ([]*model.Post, error) {
	return e.store.ListFollowedNeedingUpdate(e.now().Add(-e.cfg.FollowStaleAfter).UnixMilli())
}

// RefreshFollowedThreads refreshes every stale followed thread one by one
// through the throttle and returns how many succeeded. A failing thread is
// logged and skipped. A call made while a refresh is running waits for that
// refresh instead of starting another. The refresh itself outlives ctx and
// runs until done or Shutdown; ctx only bounds the wait.
func (e *Engine) RefreshFollowedThreads(ctx context.Context) (int, error) {
	select {
	case res := <-e.startRefresh():
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(int), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// RefreshFollowedInBackground starts a refresh unless one is running, and
// returns immediately.
func (e *Engine) RefreshFollowedInBackground() {
	e.startRefresh()
}

func (e *Engine) startRefresh() <-chan singleflight.Result {
	return e.refreshes.DoChan(refreshKey, func() (interface{}, error) {
		return e.refreshFollowed(e.life)
	})
}

func (e *Engine) refreshFollowed(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	stale, err := e.ListStaleFollowed()
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}
	Logger.Log.Infof("refreshing %d followed threads", len(stale))

	refreshed := 0
	for _, op := range stale {
		if ctx.Err() != nil {
			Logger.Log.Infof("follow refresh stopped after %d of %d threads", refreshed, len(stale))
			return refreshed, ctx.Err()
		}
		saved, err := e.refreshThread(ctx, op.Board, op.No)
		ev := ThreadRefreshed{Board: op.Board, No: op.No, Saved: saved}
		if err != nil {
			ev.Error = err.Error()
			Logger.Log.WithError(err).WithFields(map[string]interface{}{
				"board": op.Board,
				"no":    op.No,
			}).Warn("cannot refresh followed thread")
		} else {
			refreshed++
		}
		e.publishRefreshed(ev)
	}
	Logger.Log.Infof("refreshed %d of %d followed threads", refreshed, len(stale))
	return refreshed, nil
}
