package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/peek4c/peek4c/collector"
	"github.com/peek4c/peek4c/model"
	"github.com/peek4c/peek4c/moderation"
	"github.com/peek4c/peek4c/store"
	"github.com/peek4c/peek4c/utils"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	mu          sync.Mutex
	catalogs    map[string][]*model.Post
	threads     map[string][]*model.Post
	catalogErr  error
	threadCalls map[string]int
	// When set, every thread fetch waits for it to be closed.
	gate chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		catalogs:    map[string][]*model.Post{},
		threads:     map[string][]*model.Post{},
		threadCalls: map[string]int{},
	}
}

func threadID(board string, no int64) string {
	return fmt.Sprintf("%s/%d", board, no)
}

func (r *fakeRemote) FetchCatalog(_ context.Context, board string) ([]*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.catalogErr != nil {
		return nil, r.catalogErr
	}
	return r.catalogs[board], nil
}

func (r *fakeRemote) FetchThread(ctx context.Context, board string, no int64) ([]*model.Post, error) {
	r.mu.Lock()
	id := threadID(board, no)
	r.threadCalls[id]++
	gate := r.gate
	r.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	posts, ok := r.threads[id]
	if !ok {
		return nil, errors.Errorf("thread %s is gone", id)
	}
	return posts, nil
}

func (r *fakeRemote) calls(board string, no int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.threadCalls[threadID(board, no)]
}

func newTestEngine(t *testing.T) (*Engine, *store.Store, *fakeRemote, *gochannel.GoChannel) {
	s, err := store.New(utils.CreateTempDB(t))
	require.Nil(t, err)
	remote := newFakeRemote()
	bus := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 100}, watermill.NopLogger{})
	t.Cleanup(func() { bus.Close() })

	e := NewEngine(s, remote, moderation.NewFilter(s), collector.NewThrottle(0), bus, Config{
		PageSize:         20,
		FollowStaleAfter: time.Hour,
	})
	e.SetRand(rand.New(rand.NewSource(1)))
	t.Cleanup(e.Shutdown)
	return e, s, remote, bus
}

func TestFetchCatalogKeepsFreshMediaOPs(t *testing.T) {
	e, s, remote, _ := newTestEngine(t)
	require.Nil(t, s.AddBlockedKeyword("forbidden"))

	moderated := utils.TestOP("g", 3, 103)
	moderated.Sub = "Forbidden fruit"
	require.Nil(t, s.AddToHistory(utils.TestOP("g", 4, 104)))
	s.SaveThreads([]*model.Post{utils.TestOP("g", 5, 105)})
	require.Nil(t, s.SetBlocked("g", 5, true))

	remote.catalogs["g"] = []*model.Post{
		utils.TestOP("g", 1, 101),
		{No: 2, Board: "g", Sub: "no image"},
		moderated,
		utils.TestOP("g", 4, 104),
		utils.TestOP("g", 5, 105),
	}

	page, err := e.FetchCatalog(context.Background(), "g")
	require.Nil(t, err)
	assert.Equal(t, []int64{1}, utils.PostNos(page.Items))
	assert.Equal(t, EmptyNone, page.EmptyReason)

	stored, err := s.GetPost("g", 1)
	require.Nil(t, err)
	assert.Equal(t, "thread 1", stored.Sub)
}

func TestFetchCatalogFallsBackToRecommendations(t *testing.T) {
	e, s, remote, _ := newTestEngine(t)
	require.Nil(t, s.AddToHistory(utils.TestOP("g", 4, 104)))
	s.SaveThreads([]*model.Post{utils.TestOP("g", 7, 107)})
	remote.catalogs["g"] = []*model.Post{utils.TestOP("g", 4, 104)}

	page, err := e.FetchCatalog(context.Background(), "g")
	require.Nil(t, err)
	assert.Equal(t, []int64{7}, utils.PostNos(page.Items))
}

func TestFetchCatalogError(t *testing.T) {
	e, _, remote, _ := newTestEngine(t)
	remote.catalogErr = errors.New("offline")

	_, err := e.FetchCatalog(context.Background(), "g")
	assert.Error(t, err)
}

func TestGetRecommendedItems(t *testing.T) {
	e, s, _, _ := newTestEngine(t)
	require.Nil(t, s.AddBlockedKeyword("forbidden"))
	moderated := utils.TestOP("g", 11, 111)
	moderated.Com = "forbidden"
	s.SaveThreads([]*model.Post{
		utils.TestOP("g", 1, 101),
		utils.TestOP("g", 10, 110),
		moderated,
		utils.TestOP("g", 12, 112),
		utils.TestOP("v", 13, 113),
	})
	require.Nil(t, s.AddFollowing("g", 1))

	items, err := e.GetRecommendedItems(context.Background(), "g", 10, nil)
	require.Nil(t, err)
	assert.ElementsMatch(t, []int64{1, 10, 12}, utils.PostNos(items))

	items, err = e.GetRecommendedItems(context.Background(), "g", 10, []int64{10})
	require.Nil(t, err)
	assert.ElementsMatch(t, []int64{1, 12}, utils.PostNos(items))

	items, err = e.GetRecommendedItems(context.Background(), "g", 0, nil)
	require.Nil(t, err)
	assert.Empty(t, items)
}

func TestGetRecommendedItemsHydratesReplies(t *testing.T) {
	e, s, _, _ := newTestEngine(t)
	require.Nil(t, s.AddToHistory(utils.TestOP("g", 1, 101)))
	s.SaveThreads([]*model.Post{utils.TestReply("g", 1, 2, 102)})

	items, err := e.GetRecommendedItems(context.Background(), "g", 10, nil)
	require.Nil(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(2), items[0].No)
	require.NotNil(t, items[0].OpThread)
	assert.Equal(t, int64(1), items[0].OpThread.No)
}

func TestLoadFollowFeedWithoutFollows(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	page, err := e.LoadFollowFeed(context.Background(), false, 20)
	require.Nil(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, EmptyNoFollows, page.EmptyReason)
}

// Thread 1 is followed and its OP already viewed, so nothing is unread until
// the replies are fetched.
func seedReadFollowedThread(t *testing.T, s *store.Store) {
	require.Nil(t, s.AddToHistory(utils.TestOP("g", 1, 101)))
	require.Nil(t, s.AddFollowing("g", 1))
}

func TestLoadFollowFeedRefreshesWhenEmpty(t *testing.T) {
	e, s, remote, bus := newTestEngine(t)
	seedReadFollowedThread(t, s)
	remote.threads["g/1"] = []*model.Post{
		utils.TestOP("g", 1, 101),
		utils.TestReply("g", 1, 2, 102),
		utils.TestReply("g", 1, 3, 103),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	messages, err := bus.Subscribe(ctx, TopicThreadRefreshed)
	require.Nil(t, err)

	page, err := e.LoadFollowFeed(ctx, false, 20)
	require.Nil(t, err)
	assert.Equal(t, []int64{3, 2}, utils.PostNos(page.Items))
	assert.Equal(t, EmptyNone, page.EmptyReason)
	require.NotNil(t, page.Items[0].OpThread)

	select {
	case msg := <-messages:
		msg.Ack()
		var ev ThreadRefreshed
		require.Nil(t, json.Unmarshal(msg.Payload, &ev))
		assert.Equal(t, ThreadRefreshed{Board: "g", No: 1, Saved: 3}, ev)
	case <-time.After(time.Second):
		require.FailNow(t, "no refresh event")
	}
}

func TestLoadFollowFeedNothingUnread(t *testing.T) {
	e, s, remote, _ := newTestEngine(t)
	seedReadFollowedThread(t, s)
	remote.threads["g/1"] = []*model.Post{utils.TestOP("g", 1, 101)}

	page, err := e.LoadFollowFeed(context.Background(), false, 20)
	require.Nil(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, EmptyNothingUnread, page.EmptyReason)
	assert.Equal(t, 1, remote.calls("g", 1))

	// The thread is fresh now, an empty page does not refetch it.
	page, err = e.MoreFollowFeed(context.Background(), false, 20, []int64{5})
	require.Nil(t, err)
	assert.Equal(t, EmptyNothingUnread, page.EmptyReason)
	assert.Equal(t, 1, remote.calls("g", 1))
}

func TestShortFollowPageRefreshesInBackground(t *testing.T) {
	e, s, remote, _ := newTestEngine(t)
	seedReadFollowedThread(t, s)
	s.SaveThreads([]*model.Post{utils.TestReply("g", 1, 2, 102)})
	remote.threads["g/1"] = []*model.Post{
		utils.TestOP("g", 1, 101),
		utils.TestReply("g", 1, 2, 102),
		utils.TestReply("g", 1, 3, 103),
	}

	page, err := e.LoadFollowFeed(context.Background(), false, 20)
	require.Nil(t, err)
	assert.Equal(t, []int64{2}, utils.PostNos(page.Items))

	assert.Eventually(t, func() bool {
		_, err := s.GetPost("g", 3)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	page, err = e.MoreFollowFeed(context.Background(), false, 20, []int64{2})
	require.Nil(t, err)
	assert.Equal(t, []int64{3}, utils.PostNos(page.Items))
}

func TestRefreshFollowedThreadsSkipsFailures(t *testing.T) {
	e, s, remote, _ := newTestEngine(t)
	s.SaveThreads([]*model.Post{utils.TestOP("g", 1, 101), utils.TestOP("g", 5, 105)})
	require.Nil(t, s.AddFollowing("g", 1))
	require.Nil(t, s.AddFollowing("g", 5))
	remote.threads["g/1"] = []*model.Post{utils.TestOP("g", 1, 101), utils.TestReply("g", 1, 2, 102)}

	n, err := e.RefreshFollowedThreads(context.Background())
	require.Nil(t, err)
	assert.Equal(t, 1, n)

	stale, err := e.ListStaleFollowed()
	require.Nil(t, err)
	assert.Equal(t, []int64{5}, utils.PostNos(stale))
}

func TestConcurrentRefreshesShareOneRun(t *testing.T) {
	e, s, remote, _ := newTestEngine(t)
	s.SaveThreads([]*model.Post{utils.TestOP("g", 1, 101)})
	require.Nil(t, s.AddFollowing("g", 1))
	remote.threads["g/1"] = []*model.Post{utils.TestOP("g", 1, 101)}
	remote.gate = make(chan struct{})

	results := make(chan int, 2)
	go func() {
		n, _ := e.RefreshFollowedThreads(context.Background())
		results <- n
	}()
	assert.Eventually(t, func() bool { return remote.calls("g", 1) == 1 }, time.Second, 5*time.Millisecond)
	go func() {
		n, _ := e.RefreshFollowedThreads(context.Background())
		results <- n
	}()

	// Give the second caller time to join before the fetch finishes.
	time.Sleep(50 * time.Millisecond)
	close(remote.gate)

	assert.Equal(t, 1, <-results)
	assert.Equal(t, 1, <-results)
	assert.Equal(t, 1, remote.calls("g", 1))
}

func TestRefreshWaitStopsWithContext(t *testing.T) {
	e, s, remote, _ := newTestEngine(t)
	s.SaveThreads([]*model.Post{utils.TestOP("g", 1, 101)})
	require.Nil(t, s.AddFollowing("g", 1))
	remote.threads["g/1"] = []*model.Post{utils.TestOP("g", 1, 101)}
	remote.gate = make(chan struct{})
	defer close(remote.gate)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := e.RefreshFollowedThreads(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestFollowBoardServesFollowMode(t *testing.T) {
	e, s, remote, _ := newTestEngine(t)
	thread := []*model.Post{utils.TestOP("g", 1, 101), utils.TestReply("g", 1, 2, 102)}
	s.SaveThreads(thread)
	require.Nil(t, s.AddFollowing("g", 1))
	remote.threads["g/1"] = thread
	remote.catalogErr = errors.New("no such board")

	page, err := e.FetchCatalog(context.Background(), FollowBoard)
	require.Nil(t, err)
	assert.Equal(t, []int64{2, 1}, utils.PostNos(page.Items))

	more, err := e.GetRecommendedItems(context.Background(), FollowBoard, 20, []int64{2})
	require.Nil(t, err)
	assert.Equal(t, []int64{1}, utils.PostNos(more))
}

func TestFollowBoardHonorsWorkSafeSetting(t *testing.T) {
	e, s, remote, _ := newTestEngine(t)
	thread := []*model.Post{utils.TestOP("b", 1, 101)}
	s.SaveThreads(thread)
	require.Nil(t, s.AddFollowing("b", 1))
	remote.threads["b/1"] = thread
	s.SaveBoards([]model.BoardInfo{{Board: "b", WsBoard: 0}})

	page, err := e.FetchCatalog(context.Background(), FollowBoard)
	require.Nil(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, EmptyNothingUnread, page.EmptyReason)

	require.Nil(t, s.SetConfig(store.WorkSafeKey, "false"))
	page, err = e.FetchCatalog(context.Background(), FollowBoard)
	require.Nil(t, err)
	assert.Equal(t, []int64{1}, utils.PostNos(page.Items))
}

func TestShutdownStopsRefresh(t *testing.T) {
	e, s, remote, _ := newTestEngine(t)
	s.SaveThreads([]*model.Post{utils.TestOP("g", 1, 101), utils.TestOP("g", 5, 105)})
	require.Nil(t, s.AddFollowing("g", 1))
	require.Nil(t, s.AddFollowing("g", 5))
	remote.threads["g/1"] = []*model.Post{utils.TestOP("g", 1, 101)}
	remote.threads["g/5"] = []*model.Post{utils.TestOP("g", 5, 105)}
	remote.gate = make(chan struct{})

	fetches := func() int { return remote.calls("g", 1) + remote.calls("g", 5) }
	e.RefreshFollowedInBackground()
	assert.Eventually(t, func() bool { return fetches() == 1 }, time.Second, 5*time.Millisecond)

	e.Shutdown()
	assert.Equal(t, 1, fetches())

	n, err := e.RefreshFollowedThreads(context.Background())
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, fetches())
}

func TestMarkViewed(t *testing.T) {
	e, s, _, _ := newTestEngine(t)
	ctx := context.Background()

	require.Nil(t, e.MarkViewed(ctx, utils.TestOP("g", 1, 101)))
	assert.Equal(t, 1, e.ReplyLoader().Pending())

	// Already queued.
	require.Nil(t, e.MarkViewed(ctx, utils.TestOP("g", 1, 101)))
	assert.Equal(t, 1, e.ReplyLoader().Pending())

	require.Nil(t, e.MarkViewed(ctx, utils.TestReply("g", 1, 2, 102)))
	require.Nil(t, e.MarkViewed(ctx, utils.TestTextReply("g", 1, 3, 103)))
	assert.Equal(t, 1, e.ReplyLoader().Pending())

	viewed, err := s.GetViewedPosts("g", 1)
	require.Nil(t, err)
	assert.Equal(t, map[int64]bool{1: true, 2: true, 3: true}, viewed)

	// The text-only reply has no thread row to show in history.
	history, err := s.GetHistory(10, 0, false, "")
	require.Nil(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, utils.PostNos(history))

	seen, err := s.FilterHistoryNos("g", []int64{3, 4})
	require.Nil(t, err)
	assert.Equal(t, []int64{3}, seen)
}

func TestMarkViewedLoadedThreadIsNotQueued(t *testing.T) {
	e, s, _, _ := newTestEngine(t)
	s.SaveThreads([]*model.Post{utils.TestOP("g", 1, 101), utils.TestReply("g", 1, 2, 102)})

	require.Nil(t, e.MarkViewed(context.Background(), utils.TestOP("g", 1, 101)))
	assert.Equal(t, 0, e.ReplyLoader().Pending())
}

func TestLoadThreadFetchesOnce(t *testing.T) {
	e, s, remote, _ := newTestEngine(t)
	s.SaveThreads([]*model.Post{utils.TestOP("g", 1, 101)})
	require.Nil(t, s.AddToHistory(utils.TestOP("g", 1, 101)))
	remote.threads["g/1"] = []*model.Post{
		utils.TestOP("g", 1, 101),
		utils.TestReply("g", 1, 2, 102),
		utils.TestTextReply("g", 1, 3, 103),
	}

	view, err := e.LoadThread(context.Background(), "g", 1)
	require.Nil(t, err)
	assert.Equal(t, []int64{1, 2}, utils.PostNos(view.Posts))
	assert.Equal(t, map[int64]bool{1: true}, view.Viewed)

	_, err = e.LoadThread(context.Background(), "g", 1)
	require.Nil(t, err)
	assert.Equal(t, 1, remote.calls("g", 1))
}

func TestLoadThreadServesStoredPostsOnFetchError(t *testing.T) {
	e, s, _, _ := newTestEngine(t)
	s.SaveThreads([]*model.Post{utils.TestOP("g", 1, 101)})

	view, err := e.LoadThread(context.Background(), "g", 1)
	require.Nil(t, err)
	assert.Equal(t, []int64{1}, utils.PostNos(view.Posts))

	_, err = e.LoadThread(context.Background(), "g", 404)
	assert.Error(t, err)
}
