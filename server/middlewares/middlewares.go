package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/gin-gonic/gin"
	Logger "github.com/peek4c/peek4c/utils/log"
	"github.com/peek4c/peek4c/utils/metrics"
	"github.com/sirupsen/logrus"
)

// Error codes carried in the "code" field of every error body.
const (
	ErrorInternal        = 1000
	ErrorInvalidParams   = 1001
	ErrorUpstream        = 1002
	ErrorConsentRequired = 1003
	ErrorNotFound        = 1004
)

// Abort writes the error body every handler uses and stops the chain.
func Abort(c *gin.Context, status, code int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code": code,
		"msg":  msg,
	})
}

// RequestLogger logs one line per request and reports its latency, tagged by
// route and status.
func RequestLogger(client statsd.ClientInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		entry := Logger.Log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  status,
			"latency": latency.String(),
		})
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Debug("request served")
		}

		if client != nil {
			tags := []string{"route:" + route, "status:" + strconv.Itoa(status)}
			if err := client.Timing(metrics.APILatencyTiming, latency, tags, 1); err != nil {
				Logger.Log.WithError(err).Debug("cannot report request latency")
			}
		}
	}
}

// ConsentChecker reports whether the current terms were accepted.
type ConsentChecker interface {
	HasAcceptedTerms() (bool, error)
}

// RequireConsent rejects requests with 403 until the terms are accepted.
func RequireConsent(checker ConsentChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		accepted, err := checker.HasAcceptedTerms()
		if err != nil {
			Abort(c, http.StatusInternalServerError, ErrorInternal, err.Error())
			return
		}
		if !accepted {
			Abort(c, http.StatusForbidden, ErrorConsentRequired, "terms of use not accepted")
			return
		}

		c.Next()
	}
}
