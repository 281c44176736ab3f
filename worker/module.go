package worker

import (
	"context"
	"time"

	Logger "github.com/peek4c/peek4c/utils/log"
)

// GracefulRetryDelay is how long a failed module waits before it is started
// again.
var GracefulRetryDelay = 3 * time.Second

// RunModuleWithGracefulRestart runs module until it returns nil or ctx ends,
// restarting it after every error.
func RunModuleWithGracefulRestart(ctx context.Context, module Module) {
	for {
		err := module.RunModule(ctx)
		if err == nil {
			return
		}
		Logger.Log.WithError(err).Errorf(
			"module %s exited with error, retry in %s", module.Name(), GracefulRetryDelay)

		// Wait for a small amount of time and restart.
		select {
		case <-ctx.Done():
			return
		case <-time.After(GracefulRetryDelay):
		}
	}
}

type Module interface {
	// RunModule contains the customized logic of the module. It takes in a
	// context object by which its lifecycle is managed. Return error if
	// encountered any error during execution.
	RunModule(ctx context.Context) error

	// Return name of the Module. Uniquely identifies the module instance. Note
	// that if there are multiple instances of the same module, each instance
	// should have a unique name instead of using the same name.
	Name() string
}
