// Package media resolves remote media urls to local files, downloading at
// most once per url and rationing bandwidth between what is on screen and
// what is being prefetched.
package media

import (
	"context"
	"sync"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/peek4c/peek4c/collector/file_store"
	"github.com/peek4c/peek4c/model"
	"github.com/peek4c/peek4c/store"
	Logger "github.com/peek4c/peek4c/utils/log"
	"github.com/peek4c/peek4c/utils/metrics"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// ErrCancelled is the failure of a queued download removed by CancelByContext.
var ErrCancelled = errors.New("download cancelled")

// MappingStore persists url -> local path across restarts.
type MappingStore interface {
	GetCachedRequest(url string) (*model.CachedRequest, error)
	SaveCachedRequest(url, data string, at time.Time) error
}

type lane int

const (
	laneHigh lane = iota
	laneImage
	laneVideo
)

func (l lane) String() string {
	switch l {
	case laneHigh:
		return "high"
	case laneImage:
		return "image"
	}
	return "video"
}

// queued is a normal priority image download waiting for a slot. ready gets
// nil once a slot is taken on its behalf, or ErrCancelled.
type queued struct {
	url   string
	label string
	ready chan error
}

// flight is the shared state of one url download. ctx ends once every caller
// waiting on the download has given up.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

/*

Scheduler admits downloads in three lanes:

high priority: starts at once, whatever the load, and while any is running
normal images are limited to one at a time
normal images: at most maxImages at once (1 while a high priority download
runs), the rest wait in a FIFO queue that CancelByContext can prune
normal videos: start at once and are not counted

Concurrent requests for one url share a single download. A caller whose
context ends stops waiting without affecting the others: a queued download is
dropped only when nobody waits for it any more, and a started download always
finishes and is cached. Every failure, cancellation included, resolves to the
remote url so callers always get something renderable.

*/

type Scheduler struct {
	files     file_store.MediaFileStore
	mappings  MappingStore
	memo      *lru.Cache[string, string]
	downloads singleflight.Group
	statsd    statsd.ClientInterface
	maxImages int

	mu           sync.Mutex
	activeHigh   int
	activeImages int
	activeVideos int
	queue        []*queued
	flights      map[string]*flight
}

func NewScheduler(files file_store.MediaFileStore, mappings MappingStore, maxImages, memoSize int, stats statsd.ClientInterface) (*Scheduler, error) {
	if maxImages < 1 {
		return nil, errors.New("maxImages must be at least 1")
	}
	memo, err := lru.New[string, string](memoSize)
	if err != nil {
		return nil, errors.Wrap(err, "create media memo")
	}
	return &Scheduler{
		files:     files,
		mappings:  mappings,
		memo:      memo,
		statsd:    stats,
		maxImages: maxImages,
		flights:   map[string]*flight{},
	}, nil
}

// GetMediaURI returns a local path for url, downloading it first when needed.
// label groups normal priority requests for CancelByContext. On any failure
// the remote url itself is returned.
func (s *Scheduler) GetMediaURI(ctx context.Context, url string, highPriority bool, label string) string {
	if p := s.cachedPath(url); p != "" {
		return p
	}

	f := s.join(ctx, url)
	defer s.leave(url, f)

	ch := s.downloads.DoChan(url, func() (interface{}, error) {
		return s.download(f.ctx, url, highPriority, label)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			Logger.Log.WithError(res.Err).WithFields(map[string]interface{}{
				"url":     url,
				"context": label,
				"shared":  res.Shared,
			}).Warn("media download failed, using remote url")
			return url
		}
		return res.Val.(string)
	case <-ctx.Done():
		return url
	}
}

// join registers the caller as a waiter of url's download.
func (s *Scheduler) join(ctx context.Context, url string) *flight {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flights[url]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		s.flights[url] = f
	}
	f.waiters++
	return f
}

// leave drops the caller. The last one out cancels the download and detaches
// it, so later callers start a fresh one.
func (s *Scheduler) leave(url string, f *flight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if s.flights[url] == f {
		delete(s.flights, url)
		s.downloads.Forget(url)
	}
}

func (s *Scheduler) cachedPath(url string) string {
	if p, ok := s.memo.Get(url); ok {
		if s.files.Exists(p) {
			return p
		}
		s.memo.Remove(url)
	}

	row, err := s.mappings.GetCachedRequest(url)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			Logger.Log.WithError(err).WithField("url", url).Warn("cannot read media mapping")
		}
		return ""
	}
	if !s.files.Exists(row.Data) {
		return ""
	}
	s.memo.Add(url, row.Data)
	return row.Data
}

func (s *Scheduler) download(ctx context.Context, url string, highPriority bool, label string) (string, error) {
	l, err := s.admit(ctx, url, highPriority, label)
	if err != nil {
		s.report(laneImage, "cancelled")
		return "", err
	}
	defer s.release(l)

	// Once started the file is worth keeping, waiters or not.
	p, err := s.files.FetchAndStore(context.WithoutCancel(ctx), url)
	if err != nil {
		s.report(l, "failed")
		return "", err
	}
	if err := s.mappings.SaveCachedRequest(url, p, time.Now()); err != nil {
		Logger.Log.WithError(err).WithField("url", url).Error("cannot save media mapping")
	}
	s.memo.Add(url, p)
	s.report(l, "ok")
	return p, nil
}

func (s *Scheduler) imageLimitLocked() int {
	if s.activeHigh > 0 {
		return 1
	}
	return s.maxImages
}

// admit takes a slot in the request's lane, waiting in the queue when it is
// a normal image and the lane is full.
func (s *Scheduler) admit(ctx context.Context, url string, highPriority bool, label string) (lane, error) {
	s.mu.Lock()
	switch {
	case highPriority:
		s.activeHigh++
		s.mu.Unlock()
		return laneHigh, nil
	case !model.IsImageURL(url):
		s.activeVideos++
		s.mu.Unlock()
		return laneVideo, nil
	case s.activeImages < s.imageLimitLocked():
		s.activeImages++
		s.mu.Unlock()
		return laneImage, nil
	}

	req := &queued{url: url, label: label, ready: make(chan error, 1)}
	s.queue = append(s.queue, req)
	s.mu.Unlock()

	select {
	case err := <-req.ready:
		return laneImage, err
	case <-ctx.Done():
	}

	s.mu.Lock()
	removed := s.removeLocked(func(q *queued) bool { return q == req }) > 0
	s.mu.Unlock()
	if removed {
		return laneImage, ctx.Err()
	}
	// Admitted or cancelled while ctx ended; a slot taken for us goes back.
	if err := <-req.ready; err != nil {
		return laneImage, err
	}
	s.release(laneImage)
	return laneImage, ctx.Err()
}

func (s *Scheduler) release(l lane) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch l {
	case laneHigh:
		s.activeHigh--
	case laneImage:
		s.activeImages--
	case laneVideo:
		s.activeVideos--
	}
	s.pumpLocked()
}

// pumpLocked starts queued images while the dynamic limit allows.
func (s *Scheduler) pumpLocked() {
	for len(s.queue) > 0 && s.activeImages < s.imageLimitLocked() {
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.activeImages++
		next.ready <- nil
	}
}

// removeLocked drops matching queued requests, failing each with ErrCancelled.
func (s *Scheduler) removeLocked(match func(*queued) bool) int {
	kept := s.queue[:0]
	removed := 0
	for _, q := range s.queue {
		if match(q) {
			q.ready <- ErrCancelled
			removed++
			continue
		}
		kept = append(kept, q)
	}
	for i := len(kept); i < len(s.queue); i++ {
		s.queue[i] = nil
	}
	s.queue = kept
	return removed
}

// CancelByContext drops every queued download labelled label and returns how
// many were dropped. Running downloads are not interrupted.
func (s *Scheduler) CancelByContext(label string) int {
	if label == "" {
		return 0
	}
	s.mu.Lock()
	n := s.removeLocked(func(q *queued) bool { return q.label == label })
	s.mu.Unlock()
	if n > 0 {
		Logger.Log.WithField("context", label).Infof("cleared %d queued media downloads", n)
	}
	return n
}

// ClearCache deletes every downloaded file and forgets the memo. Persisted
// mappings are kept; they no longer resolve and are refreshed on next use.
func (s *Scheduler) ClearCache() error {
	s.memo.Purge()
	return s.files.CleanUp()
}

type stats struct {
	activeHigh, activeImages, activeVideos, queued int
}

func (s *Scheduler) stats() stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return stats{s.activeHigh, s.activeImages, s.activeVideos, len(s.queue)}
}

func (s *Scheduler) report(l lane, result string) {
	metrics.Incr(s.statsd, metrics.MediaDownloadCounter, []string{"lane:" + l.String(), "result:" + result})
}
