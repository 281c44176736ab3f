package modules

import (
	"context"
	"encoding/json"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/peek4c/peek4c/feed"
	Logger "github.com/peek4c/peek4c/utils/log"
	"github.com/peek4c/peek4c/utils/metrics"
)

type ReporterConfig struct {
	Name string
}

// Reporter's job is to listen to the event bus and aggregate results, sending
// to Datadog for monitoring purpose.
type Reporter struct {
	Config ReporterConfig

	Statsd statsd.ClientInterface

	EventBus message.Subscriber
}

func NewReporter(config ReporterConfig, statsd statsd.ClientInterface, e message.Subscriber) *Reporter {
	return &Reporter{
		Config:   config,
		Statsd:   statsd,
		EventBus: e,
	}
}

// ReportRefresh counts one followed thread refresh attempt by board and
// result.
func ReportRefresh(ev feed.ThreadRefreshed, client statsd.ClientInterface) {
	result := "ok"
	if ev.Error != "" {
		result = "error"
	}
	metrics.Incr(client, metrics.ThreadRefreshCounter, []string{
		"board:" + ev.Board,
		"result:" + result,
	})
}

func (r *Reporter) ProcessRefreshEvents(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	messages, err := r.EventBus.Subscribe(ctx, feed.TopicThreadRefreshed)
	if err != nil {
		return err
	}

	for msg := range messages {
		msg.Ack()

		var ev feed.ThreadRefreshed
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			Logger.Log.WithError(err).Warnf("dropping undecodable message %s", msg.UUID)
			continue
		}
		ReportRefresh(ev, r.Statsd)
	}

	return nil
}

func (r *Reporter) RunModule(ctx context.Context) error {
	return r.ProcessRefreshEvents(ctx)
}

func (r *Reporter) Name() string {
	return r.Config.Name
}
