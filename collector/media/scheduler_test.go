package media

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/peek4c/peek4c/collector/file_store"
	"github.com/peek4c/peek4c/model"
	"github.com/peek4c/peek4c/store"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryMappings struct {
	mu   sync.Mutex
	rows map[string]string
}

func newMemoryMappings() *memoryMappings {
	return &memoryMappings{rows: map[string]string{}}
}

func (m *memoryMappings) GetCachedRequest(url string) (*model.CachedRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[url]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &model.CachedRequest{URL: url, Data: p}, nil
}

func (m *memoryMappings) SaveCachedRequest(url, data string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[url] = data
	return nil
}

// gate holds every download open until its url is released.
type gate struct {
	mu   sync.Mutex
	open map[string]chan struct{}
	fail map[string]error
}

func newGate() *gate {
	return &gate{open: map[string]chan struct{}{}, fail: map[string]error{}}
}

func (g *gate) ch(url string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.open[url]
	if !ok {
		c = make(chan struct{})
		g.open[url] = c
	}
	return c
}

func (g *gate) wait(ctx context.Context, url string) error {
	select {
	case <-g.ch(url):
	case <-ctx.Done():
		return ctx.Err()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fail[url]
}

func (g *gate) release(url string) {
	close(g.ch(url))
}

const (
	img1  = "https://i.4cdn.org/g/1.jpg"
	img2  = "https://i.4cdn.org/g/2.png"
	img3  = "https://i.4cdn.org/g/3.gif"
	img4  = "https://i.4cdn.org/g/4.webp"
	video = "https://i.4cdn.org/g/5.webm"
)

func newTestScheduler(t *testing.T, maxImages int) (*Scheduler, *file_store.FakeFileStore, *memoryMappings, *gate) {
	files := file_store.NewFakeFileStore()
	g := newGate()
	files.BeforeStore = g.wait
	mappings := newMemoryMappings()
	s, err := NewScheduler(files, mappings, maxImages, 16, &statsd.NoOpClient{})
	require.Nil(t, err)
	return s, files, mappings, g
}

// fetchAsync resolves url in the background; the result arrives on the
// returned channel.
func fetchAsync(s *Scheduler, url string, high bool, label string) <-chan string {
	res := make(chan string, 1)
	go func() {
		res <- s.GetMediaURI(context.Background(), url, high, label)
	}()
	return res
}

func waitStats(t *testing.T, s *Scheduler, want stats) {
	assert.Eventually(t, func() bool { return s.stats() == want }, time.Second, 5*time.Millisecond,
		"want %+v, got %+v", want, s.stats())
}

func TestGetMediaURIDownloadsOnceAndCaches(t *testing.T) {
	s, files, mappings, g := newTestScheduler(t, 4)
	g.release(img1)

	p := s.GetMediaURI(context.Background(), img1, false, "")
	assert.Equal(t, "/fake/1.jpg", p)
	assert.Equal(t, "/fake/1.jpg", mappings.rows[img1])

	assert.Equal(t, p, s.GetMediaURI(context.Background(), img1, false, ""))
	assert.Equal(t, []string{img1}, files.Fetched())
}

func TestGetMediaURIUsesPersistedMapping(t *testing.T) {
	s, files, mappings, g := newTestScheduler(t, 4)
	g.release(img1)
	_, err := files.FetchAndStore(context.Background(), img1)
	require.Nil(t, err)
	mappings.rows[img1] = "/fake/1.jpg"

	assert.Equal(t, "/fake/1.jpg", s.GetMediaURI(context.Background(), img1, false, ""))
	assert.Len(t, files.Fetched(), 1)
}

func TestGetMediaURIRedownloadsMissingFile(t *testing.T) {
	s, files, _, g := newTestScheduler(t, 4)
	g.release(img1)

	p := s.GetMediaURI(context.Background(), img1, false, "")
	files.Remove(p)
	assert.Equal(t, p, s.GetMediaURI(context.Background(), img1, false, ""))
	assert.Equal(t, []string{img1, img1}, files.Fetched())
}

func TestGetMediaURIFailureReturnsRemoteURL(t *testing.T) {
	s, _, mappings, g := newTestScheduler(t, 4)
	g.fail[img1] = errors.New("404")
	g.release(img1)

	assert.Equal(t, img1, s.GetMediaURI(context.Background(), img1, true, ""))
	assert.Empty(t, mappings.rows)
	waitStats(t, s, stats{})
}

func TestConcurrentRequestsShareOneDownload(t *testing.T) {
	s, files, _, g := newTestScheduler(t, 4)

	a := fetchAsync(s, img1, false, "")
	waitStats(t, s, stats{activeImages: 1})
	b := fetchAsync(s, img1, true, "")
	time.Sleep(20 * time.Millisecond)
	g.release(img1)

	assert.Equal(t, "/fake/1.jpg", <-a)
	assert.Equal(t, "/fake/1.jpg", <-b)
	assert.Equal(t, []string{img1}, files.Fetched())
}

func TestNormalImagesAreCappedAndQueued(t *testing.T) {
	s, _, _, g := newTestScheduler(t, 2)

	r1 := fetchAsync(s, img1, false, "")
	r2 := fetchAsync(s, img2, false, "")
	waitStats(t, s, stats{activeImages: 2})
	r3 := fetchAsync(s, img3, false, "")
	waitStats(t, s, stats{activeImages: 2, queued: 1})

	g.release(img1)
	assert.Equal(t, "/fake/1.jpg", <-r1)
	waitStats(t, s, stats{activeImages: 2})

	g.release(img2)
	g.release(img3)
	assert.Equal(t, "/fake/2.png", <-r2)
	assert.Equal(t, "/fake/3.gif", <-r3)
	waitStats(t, s, stats{})
}

func TestHighPriorityShrinksImageLimit(t *testing.T) {
	s, _, _, g := newTestScheduler(t, 4)

	high := fetchAsync(s, img1, true, "")
	waitStats(t, s, stats{activeHigh: 1})

	r2 := fetchAsync(s, img2, false, "")
	waitStats(t, s, stats{activeHigh: 1, activeImages: 1})
	r3 := fetchAsync(s, img3, false, "")
	waitStats(t, s, stats{activeHigh: 1, activeImages: 1, queued: 1})
	r4 := fetchAsync(s, img4, false, "")
	waitStats(t, s, stats{activeHigh: 1, activeImages: 1, queued: 2})

	// With the high priority download gone the limit is back to 4.
	g.release(img1)
	<-high
	waitStats(t, s, stats{activeImages: 3})

	g.release(img2)
	g.release(img3)
	g.release(img4)
	<-r2
	<-r3
	<-r4
	waitStats(t, s, stats{})
}

func TestVideosBypassTheQueue(t *testing.T) {
	s, _, _, g := newTestScheduler(t, 1)

	r1 := fetchAsync(s, img1, false, "")
	waitStats(t, s, stats{activeImages: 1})
	v := fetchAsync(s, video, false, "")
	waitStats(t, s, stats{activeImages: 1, activeVideos: 1})

	g.release(video)
	assert.Equal(t, "/fake/5.webm", <-v)
	g.release(img1)
	<-r1
	waitStats(t, s, stats{})
}

func TestCancelByContextDropsQueuedRequests(t *testing.T) {
	s, files, _, g := newTestScheduler(t, 1)

	r1 := fetchAsync(s, img1, false, "thread-1")
	waitStats(t, s, stats{activeImages: 1})
	r2 := fetchAsync(s, img2, false, "thread-1")
	waitStats(t, s, stats{activeImages: 1, queued: 1})
	r3 := fetchAsync(s, img3, false, "thread-2")
	waitStats(t, s, stats{activeImages: 1, queued: 2})

	assert.Equal(t, 0, s.CancelByContext(""))
	assert.Equal(t, 1, s.CancelByContext("thread-1"))
	assert.Equal(t, img2, <-r2)
	waitStats(t, s, stats{activeImages: 1, queued: 1})

	g.release(img1)
	g.release(img3)
	assert.Equal(t, "/fake/1.jpg", <-r1)
	assert.Equal(t, "/fake/3.gif", <-r3)
	assert.Equal(t, []string{img1, img3}, files.Fetched())
}

func TestQueuedRequestHonorsContext(t *testing.T) {
	s, _, _, g := newTestScheduler(t, 1)

	r1 := fetchAsync(s, img1, false, "")
	waitStats(t, s, stats{activeImages: 1})

	ctx, cancel := context.WithCancel(context.Background())
	res := make(chan string, 1)
	go func() { res <- s.GetMediaURI(ctx, img2, false, "") }()
	waitStats(t, s, stats{activeImages: 1, queued: 1})
	cancel()

	assert.Equal(t, img2, <-res)
	waitStats(t, s, stats{activeImages: 1})
	g.release(img1)
	<-r1
	waitStats(t, s, stats{})
}

func TestClearCache(t *testing.T) {
	s, files, _, g := newTestScheduler(t, 4)
	g.release(img1)

	p := s.GetMediaURI(context.Background(), img1, false, "")
	require.Nil(t, s.ClearCache())
	assert.False(t, files.Exists(p))

	assert.Equal(t, p, s.GetMediaURI(context.Background(), img1, false, ""))
	assert.Len(t, files.Fetched(), 2)
}

func (s *Scheduler) waiters(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.flights[url]; ok {
		return f.waiters
	}
	return 0
}

func TestJoinedCallerOutlivesCancelledStarter(t *testing.T) {
	s, files, _, g := newTestScheduler(t, 1)

	r2 := fetchAsync(s, img2, false, "")
	waitStats(t, s, stats{activeImages: 1})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan string, 1)
	go func() { first <- s.GetMediaURI(ctx, img1, false, "grid") }()
	waitStats(t, s, stats{activeImages: 1, queued: 1})

	joined := fetchAsync(s, img1, true, "")
	assert.Eventually(t, func() bool { return s.waiters(img1) == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.Equal(t, img1, <-first)
	waitStats(t, s, stats{activeImages: 1, queued: 1})

	g.release(img2)
	g.release(img1)
	assert.Equal(t, "/fake/2.png", <-r2)
	assert.Equal(t, "/fake/1.jpg", <-joined)
	assert.Equal(t, []string{img2, img1}, files.Fetched())
	waitStats(t, s, stats{})
}

func TestStartedDownloadFinishesAfterCallerLeaves(t *testing.T) {
	s, files, mappings, g := newTestScheduler(t, 4)

	ctx, cancel := context.WithCancel(context.Background())
	res := make(chan string, 1)
	go func() { res <- s.GetMediaURI(ctx, img1, false, "") }()
	waitStats(t, s, stats{activeImages: 1})

	cancel()
	assert.Equal(t, img1, <-res)

	g.release(img1)
	waitStats(t, s, stats{})
	assert.Eventually(t, func() bool {
		_, err := mappings.GetCachedRequest(img1)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, "/fake/1.jpg", s.GetMediaURI(context.Background(), img1, false, ""))
	assert.Equal(t, []string{img1}, files.Fetched())
}
