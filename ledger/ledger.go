// Package ledger holds the per post dispositions: starred, following and
// blocked. Following and blocked are mutually exclusive on a thread.
package ledger

import (
	"context"

	"github.com/peek4c/peek4c/events"
	"github.com/peek4c/peek4c/model"
	"github.com/peek4c/peek4c/store"
	Logger "github.com/peek4c/peek4c/utils/log"
	"github.com/pkg/errors"
)

type Ledger struct {
	store  *store.Store
	events events.FollowBroadcaster
}

func New(s *store.Store, broadcaster events.FollowBroadcaster) *Ledger {
	return &Ledger{store: s, events: broadcaster}
}

// Status is every disposition of one post.
type Status struct {
	Starred   bool `json:"starred"`
	Following bool `json:"following"`
	Blocked   bool `json:"blocked"`
}

// ToggleStar stars or unstars post and returns the new state. Starring
// persists the post, and the OP of a reply, so the star list can render it.
func (l *Ledger) ToggleStar(_ context.Context, post *model.Post) (bool, error) {
	starred := false
	err := l.store.Transaction(func(tx *store.Store) error {
		exists, err := tx.IsStarred(post.Board, post.No)
		if err != nil {
			return err
		}
		if exists {
			return tx.RemoveStar(post.Board, post.No)
		}
		tx.SaveThreads(withOP(post))
		starred = true
		return tx.AddStar(post.Board, post.No)
	})
	if err != nil {
		return false, errors.Wrapf(err, "toggle star %s", post)
	}
	return starred, nil
}

// ToggleFollow follows or unfollows the thread started by post and returns
// the new state. Replies and blocked threads cannot be followed; for them it
// returns false and changes nothing. Subscribers hear about the change once
// it is committed.
func (l *Ledger) ToggleFollow(_ context.Context, post *model.Post) (bool, error) {
	logger := Logger.Log.WithField("post", post.String())
	if !post.IsOP() {
		logger.Warn("cannot follow a reply, resolve its thread first")
		return false, nil
	}

	following, refused := false, false
	err := l.store.Transaction(func(tx *store.Store) error {
		blocked, err := tx.IsBlocked(post.Board, post.No)
		if err != nil {
			return err
		}
		if blocked {
			refused = true
			return nil
		}
		removed, err := tx.RemoveFollowing(post.Board, post.No)
		if err != nil || removed {
			return err
		}
		tx.SaveThreads([]*model.Post{post})
		following = true
		return tx.AddFollowing(post.Board, post.No)
	})
	if err != nil {
		return false, errors.Wrapf(err, "toggle follow %s", post)
	}
	if refused {
		logger.Info("cannot follow a blocked thread")
		return false, nil
	}

	l.events.NotifyFollowChanged(events.FollowEvent{
		ThreadNo:    post.No,
		Board:       post.Board,
		IsFollowing: following,
	})
	return following, nil
}

// ToggleBlock blocks or unblocks the thread post belongs to and returns the
// new state. Blocking unfollows the thread; stars and history are kept.
// Returns store.ErrNotFound when the thread's OP was never stored.
func (l *Ledger) ToggleBlock(_ context.Context, post *model.Post) (bool, error) {
	board, threadNo := post.Board, post.OwnerNo()

	blocked, unfollowed := false, false
	err := l.store.Transaction(func(tx *store.Store) error {
		if op := threadOP(post); op != nil {
			tx.SaveThreads([]*model.Post{op})
		}
		current, err := tx.IsBlocked(board, threadNo)
		if err != nil {
			return err
		}
		blocked = !current
		if err := tx.SetBlocked(board, threadNo, blocked); err != nil {
			return err
		}
		if blocked {
			unfollowed, err = tx.RemoveFollowing(board, threadNo)
		}
		return err
	})
	if err != nil {
		return false, errors.Wrapf(err, "toggle block /%s/%d", board, threadNo)
	}

	if unfollowed {
		l.events.NotifyFollowChanged(events.FollowEvent{
			ThreadNo:    threadNo,
			Board:       board,
			IsFollowing: false,
		})
	}
	return blocked, nil
}

// threadOP is the OP of post when the caller has it at hand.
func threadOP(post *model.Post) *model.Post {
	if post.IsOP() {
		return post
	}
	return post.OpThread
}

func withOP(post *model.Post) []*model.Post {
	if post.IsOP() || post.OpThread == nil {
		return []*model.Post{post}
	}
	return []*model.Post{post, post.OpThread}
}

func (l *Ledger) IsStarred(board string, no int64) (bool, error) {
	return l.store.IsStarred(board, no)
}

func (l *Ledger) IsFollowing(board string, no int64) (bool, error) {
	return l.store.IsFollowing(board, no)
}

func (l *Ledger) IsBlocked(board string, no int64) (bool, error) {
	return l.store.IsBlocked(board, no)
}

// Status reads all three dispositions of (board, no). Blocked and following
// are thread level: for a reply pass its OP's number.
func (l *Ledger) Status(board string, no int64) (Status, error) {
	var st Status
	var err error
	if st.Starred, err = l.store.IsStarred(board, no); err != nil {
		return st, err
	}
	if st.Following, err = l.store.IsFollowing(board, no); err != nil {
		return st, err
	}
	st.Blocked, err = l.store.IsBlocked(board, no)
	return st, err
}

func (l *Ledger) ListStars() ([]*model.Post, error) {
	return l.store.ListStars()
}

func (l *Ledger) ListFollowing() ([]*model.Post, error) {
	return l.store.ListFollowing()
}

func (l *Ledger) ListBlocked() ([]*model.Post, error) {
	return l.store.ListBlocked()
}
