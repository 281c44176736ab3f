package collector

import (
	"context"
	"encoding/json"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/peek4c/peek4c/model"
	"github.com/peek4c/peek4c/store"
	Logger "github.com/peek4c/peek4c/utils/log"
	"github.com/peek4c/peek4c/utils/metrics"
	"github.com/pkg/errors"
)

// Getter fetches the raw body of a url.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// RequestCache is the url keyed persistence the cache reads and writes.
type RequestCache interface {
	GetCachedRequest(url string) (*model.CachedRequest, error)
	SaveCachedRequest(url, data string, at time.Time) error
}

// ErrCorruptCache is returned when the network failed and the only cached
// body left is not valid json.
var ErrCorruptCache = errors.New("cached response is not valid json")

// JSONCache serves remote json from the local requests table.
//
// A cached body younger than the ttl is returned without touching the network.
// Otherwise the url is fetched and the body cached. When the fetch fails, a
// cached body of any age is returned instead of the error.
type JSONCache struct {
	getter Getter
	cache  RequestCache
	statsd statsd.ClientInterface
	now    func() time.Time
}

func NewJSONCache(getter Getter, cache RequestCache, stats statsd.ClientInterface) *JSONCache {
	return &JSONCache{getter: getter, cache: cache, statsd: stats, now: time.Now}
}

// SetClock replaces the time source used for ttl checks and cache stamps.
func (c *JSONCache) SetClock(now func() time.Time) {
	c.now = now
}

func (c *JSONCache) Fetch(ctx context.Context, url string, ttl time.Duration) ([]byte, error) {
	logger := Logger.Log.WithField("url", url)

	cached, err := c.cache.GetCachedRequest(url)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		logger.WithError(err).Warn("cannot read request cache, fetching")
	}
	if err != nil {
		cached = nil
	}

	if cached != nil {
		age := c.now().Sub(time.UnixMilli(cached.Timestamp))
		if age < ttl {
			if json.Valid([]byte(cached.Data)) {
				c.report("hit")
				return []byte(cached.Data), nil
			}
			logger.Warn("cached response is not valid json, refetching")
		}
	}

	body, err := c.getter.Get(ctx, url)
	if err == nil && !json.Valid(body) {
		err = errors.Errorf("response of %s is not valid json", url)
	}
	if err == nil {
		if saveErr := c.cache.SaveCachedRequest(url, string(body), c.now()); saveErr != nil {
			logger.WithError(saveErr).Error("cannot cache response")
		}
		c.report("miss")
		return body, nil
	}

	if cached == nil {
		c.report("error")
		return nil, errors.Wrapf(err, "fetch %s", url)
	}
	if !json.Valid([]byte(cached.Data)) {
		c.report("error")
		return nil, errors.Wrapf(ErrCorruptCache, "fetch %s failed with %v", url, err)
	}
	logger.WithError(err).Warn("fetch failed, serving stale cache")
	c.report("stale")
	return []byte(cached.Data), nil
}

func (c *JSONCache) report(result string) {
	metrics.Incr(c.statsd, metrics.JSONCacheCounter, []string{"result:" + result})
}
