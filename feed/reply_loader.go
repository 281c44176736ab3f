package feed

import (
	"context"
	"sync"

	"github.com/peek4c/peek4c/events"
	Logger "github.com/peek4c/peek4c/utils/log"
)

const replyQueueSize = 256

type threadKey struct {
	board string
	no    int64
}

// ReplyLoader fetches the replies of threads in the background, one thread at
// a time and in arrival order. A thread already queued or being fetched is
// not queued twice.
type ReplyLoader struct {
	fetch func(ctx context.Context, board string, no int64) error
	// Optional. Newly followed threads are queued while running.
	events events.FollowBroadcaster

	mu       sync.Mutex
	inFlight map[threadKey]bool
	queue    chan threadKey
}

func NewReplyLoader(fetch func(ctx context.Context, board string, no int64) error) *ReplyLoader {
	return &ReplyLoader{
		fetch:    fetch,
		inFlight: make(map[threadKey]bool),
		queue:    make(chan threadKey, replyQueueSize),
	}
}

// ListenTo makes the loader queue every thread that becomes followed. Call
// before RunModule.
func (l *ReplyLoader) ListenTo(b events.FollowBroadcaster) {
	l.events = b
}

// Enqueue queues a thread and reports whether it was added. It never blocks; a
// full queue drops the thread.
func (l *ReplyLoader) Enqueue(board string, no int64) bool {
	key := threadKey{board: board, no: no}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inFlight[key] {
		return false
	}
	select {
	case l.queue <- key:
		l.inFlight[key] = true
		return true
	default:
		Logger.Log.WithField("board", board).Warnf("reply queue full, dropping thread %d", no)
		return false
	}
}

// Pending is the number of threads queued or being fetched.
func (l *ReplyLoader) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.inFlight)
}

func (l *ReplyLoader) RunModule(ctx context.Context) error {
	if l.events != nil {
		token := l.events.Subscribe(func(ev events.FollowEvent) {
			if ev.IsFollowing {
				l.Enqueue(ev.Board, ev.ThreadNo)
			}
		})
		defer l.events.Unsubscribe(token)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case key := <-l.queue:
			l.load(ctx, key)
		}
	}
}

func (l *ReplyLoader) load(ctx context.Context, key threadKey) {
	defer func() {
		l.mu.Lock()
		delete(l.inFlight, key)
		l.mu.Unlock()
	}()
	if err := l.fetch(ctx, key.board, key.no); err != nil {
		Logger.Log.WithError(err).WithField("board", key.board).Warnf("cannot load replies of %d", key.no)
		return
	}
	Logger.Log.WithField("board", key.board).Debugf("loaded replies of %d", key.no)
}

func (l *ReplyLoader) Name() string {
	return "reply_loader"
}
