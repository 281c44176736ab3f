package metrics

import (
	"github.com/DataDog/datadog-go/statsd"
	Logger "github.com/peek4c/peek4c/utils/log"
)

const (
	ThreadRefreshCounter = "peek4c.thread_refresh"
	MediaDownloadCounter = "peek4c.media.download"
	JSONCacheCounter     = "peek4c.json_cache"
	APILatencyTiming     = "peek4c.api.latency"
	HTTPRequestTiming    = "peek4c.http.request"
)

// NewStatsdClient returns a dogstatsd client for addr, or a client that drops
// everything when addr is empty or unreachable, so callers never nil check.
func NewStatsdClient(addr string) statsd.ClientInterface {
	if addr == "" {
		return &statsd.NoOpClient{}
	}
	client, err := statsd.New(addr)
	if err != nil {
		Logger.Log.WithError(err).Warnf("cannot create statsd client for %s, metrics disabled", addr)
		return &statsd.NoOpClient{}
	}
	return client
}

// Incr reports a counter and only logs failures; metrics never fail a caller.
func Incr(client statsd.ClientInterface, name string, tags []string) {
	if client == nil {
		return
	}
	if err := client.Incr(name, tags, 1); err != nil {
		Logger.Log.WithError(err).Debugf("cannot report %s", name)
	}
}
