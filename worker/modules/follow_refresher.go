package modules

import (
	"context"

	Logger "github.com/peek4c/peek4c/utils/log"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

// Refresher refreshes the followed threads due for it.
type Refresher interface {
	RefreshFollowedThreads(ctx context.Context) (int, error)
}

type FollowRefresherConfig struct {
	Name string
	// Standard cron spec or descriptor, e.g. "@every 15m".
	Spec string
	// Also refresh once right after start.
	RunAtStart bool
}

// FollowRefresher refreshes followed threads on a cron schedule so follow mode
// has new replies before the user asks for them.
type FollowRefresher struct {
	Config    FollowRefresherConfig
	refresher Refresher
}

func NewFollowRefresher(config FollowRefresherConfig, refresher Refresher) (*FollowRefresher, error) {
	if _, err := cron.ParseStandard(config.Spec); err != nil {
		return nil, errors.Wrapf(err, "invalid refresh schedule %q", config.Spec)
	}
	return &FollowRefresher{Config: config, refresher: refresher}, nil
}

func (r *FollowRefresher) refresh(ctx context.Context) {
	n, err := r.refresher.RefreshFollowedThreads(ctx)
	if err != nil {
		if ctx.Err() == nil {
			Logger.Log.WithError(err).Error("scheduled follow refresh failed")
		}
		return
	}
	Logger.Log.Debugf("scheduled follow refresh updated %d threads", n)
}

func (r *FollowRefresher) RunModule(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(r.Config.Spec, func() { r.refresh(ctx) }); err != nil {
		return errors.Wrap(err, "schedule follow refresh")
	}
	c.Start()
	Logger.Log.Infof("follow refresh scheduled %s", r.Config.Spec)

	if r.Config.RunAtStart {
		go r.refresh(ctx)
	}

	<-ctx.Done()
	// Wait for a running refresh to notice the cancellation.
	<-c.Stop().Done()
	return nil
}

func (r *FollowRefresher) Name() string {
	return r.Config.Name
}
