package clients

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	Logger "github.com/peek4c/peek4c/utils/log"
	"github.com/peek4c/peek4c/utils/metrics"
	"github.com/pkg/errors"
	"resty.dev/v3"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "peek4c/1.0"
)

// StatusError is returned for any response with status code >= 300.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: non-200 http code %d", e.URL, e.StatusCode)
}

type HttpClient struct {
	client *resty.Client
	statsd statsd.ClientInterface
}

func NewDefaultHttpClient() *HttpClient {
	return NewHttpClient(defaultTimeout, defaultUserAgent, &statsd.NoOpClient{})
}

// NewHttpClient returns a client that reports every response latency to
// statsd, tagged by host and status code.
func NewHttpClient(timeout time.Duration, userAgent string, stats statsd.ClientInterface) *HttpClient {
	c := &HttpClient{statsd: stats}
	c.client = resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		AddResponseMiddleware(c.latencyMiddleware)
	return c
}

func (c *HttpClient) Close() error {
	return c.client.Close()
}

// Get returns the response body of uri. Transport failures and non 2xx
// responses are errors.
func (c *HttpClient) Get(ctx context.Context, uri string) ([]byte, error) {
	res, err := c.client.R().WithContext(ctx).Get(uri)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", uri)
	}
	if IsNon200HttpResponse(res) {
		MaybeLogNon200HttpError(res)
		return nil, &StatusError{URL: uri, StatusCode: res.StatusCode()}
	}
	return res.Bytes(), nil
}

func (c *HttpClient) latencyMiddleware(_ *resty.Client, response *resty.Response) error {
	reqURL, err := url.Parse(response.Request.URL)
	if err != nil {
		return nil
	}
	tags := []string{
		"host:" + reqURL.Host,
		fmt.Sprintf("status:%d", response.StatusCode()),
	}
	if err := c.statsd.Timing(metrics.HTTPRequestTiming, response.Duration(), tags, 1); err != nil {
		Logger.Log.WithError(err).Debug("cannot report http latency")
	}
	return nil
}

// Log http response if the error code is not 2XX
func MaybeLogNon200HttpError(res *resty.Response) {
	if IsNon200HttpResponse(res) {
		Logger.Log.Errorf("non-200 http code: %d from %s", res.StatusCode(), res.Request.URL)
		Logger.Log.Debugln("response body is: ", res.String())
	}
}

func IsNon200HttpResponse(res *resty.Response) bool {
	return res.StatusCode() >= 300
}
