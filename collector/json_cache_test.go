package collector

import (
	"context"
	"testing"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/peek4c/peek4c/model"
	"github.com/peek4c/peek4c/store"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGetter struct {
	bodies map[string]string
	err    error
	calls  int
}

func (g *fakeGetter) Get(_ context.Context, url string) ([]byte, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return []byte(g.bodies[url]), nil
}

type memoryCache struct {
	rows map[string]model.CachedRequest
}

func newMemoryCache() *memoryCache {
	return &memoryCache{rows: map[string]model.CachedRequest{}}
}

func (c *memoryCache) GetCachedRequest(url string) (*model.CachedRequest, error) {
	row, ok := c.rows[url]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &row, nil
}

func (c *memoryCache) SaveCachedRequest(url, data string, at time.Time) error {
	c.rows[url] = model.CachedRequest{URL: url, Data: data, Timestamp: at.UnixMilli()}
	return nil
}

const boardsURL = "https://a.4cdn.org/boards.json"

func newTestJSONCache(g *fakeGetter, c *memoryCache, now *time.Time) *JSONCache {
	jc := NewJSONCache(g, c, &statsd.NoOpClient{})
	jc.SetClock(func() time.Time { return *now })
	return jc
}

func TestJSONCacheFreshHitSkipsNetwork(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	g := &fakeGetter{bodies: map[string]string{boardsURL: `{"boards":[]}`}}
	c := newMemoryCache()
	jc := newTestJSONCache(g, c, &now)

	body, err := jc.Fetch(context.Background(), boardsURL, time.Minute)
	require.Nil(t, err)
	assert.Equal(t, `{"boards":[]}`, string(body))
	assert.Equal(t, 1, g.calls)
	assert.Equal(t, now.UnixMilli(), c.rows[boardsURL].Timestamp)

	now = now.Add(59 * time.Second)
	_, err = jc.Fetch(context.Background(), boardsURL, time.Minute)
	require.Nil(t, err)
	assert.Equal(t, 1, g.calls)
}

func TestJSONCacheExpiredRefetches(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	g := &fakeGetter{bodies: map[string]string{boardsURL: `{"boards":[1]}`}}
	c := newMemoryCache()
	c.SaveCachedRequest(boardsURL, `{"boards":[]}`, now.Add(-time.Minute))
	jc := newTestJSONCache(g, c, &now)

	body, err := jc.Fetch(context.Background(), boardsURL, time.Minute)
	require.Nil(t, err)
	assert.Equal(t, `{"boards":[1]}`, string(body))
	assert.Equal(t, 1, g.calls)
	assert.Equal(t, now.UnixMilli(), c.rows[boardsURL].Timestamp)
}

func TestJSONCacheServesStaleOnError(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	g := &fakeGetter{err: errors.New("connection refused")}
	c := newMemoryCache()
	c.SaveCachedRequest(boardsURL, `{"boards":[]}`, now.Add(-24*time.Hour))
	jc := newTestJSONCache(g, c, &now)

	body, err := jc.Fetch(context.Background(), boardsURL, time.Minute)
	require.Nil(t, err)
	assert.Equal(t, `{"boards":[]}`, string(body))
	assert.Equal(t, now.Add(-24*time.Hour).UnixMilli(), c.rows[boardsURL].Timestamp)
}

func TestJSONCacheErrorWithoutCache(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	g := &fakeGetter{err: errors.New("connection refused")}
	jc := newTestJSONCache(g, newMemoryCache(), &now)

	_, err := jc.Fetch(context.Background(), boardsURL, time.Minute)
	assert.Error(t, err)
}

func TestJSONCacheCorruptFreshEntryIsMiss(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	g := &fakeGetter{bodies: map[string]string{boardsURL: `{"boards":[]}`}}
	c := newMemoryCache()
	c.SaveCachedRequest(boardsURL, `{"boards":`, now)
	jc := newTestJSONCache(g, c, &now)

	body, err := jc.Fetch(context.Background(), boardsURL, time.Minute)
	require.Nil(t, err)
	assert.Equal(t, `{"boards":[]}`, string(body))
	assert.Equal(t, 1, g.calls)
}

func TestJSONCacheCorruptStaleEntryIsError(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	g := &fakeGetter{err: errors.New("connection refused")}
	c := newMemoryCache()
	c.SaveCachedRequest(boardsURL, `{"boards":`, now.Add(-time.Hour))
	jc := newTestJSONCache(g, c, &now)

	_, err := jc.Fetch(context.Background(), boardsURL, time.Minute)
	assert.True(t, errors.Is(err, ErrCorruptCache))
}

func TestJSONCacheInvalidResponseFallsBack(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	g := &fakeGetter{bodies: map[string]string{boardsURL: `<html>maintenance</html>`}}
	c := newMemoryCache()
	c.SaveCachedRequest(boardsURL, `{"boards":[]}`, now.Add(-time.Hour))
	jc := newTestJSONCache(g, c, &now)

	body, err := jc.Fetch(context.Background(), boardsURL, time.Minute)
	require.Nil(t, err)
	assert.Equal(t, `{"boards":[]}`, string(body))
}
