// Package worker runs the long lived background modules of a peek4c process
// next to each other, sharing one in-process event bus.
package worker

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	Logger "github.com/peek4c/peek4c/utils/log"
)

// Engine manages shared resources and execution lifecycle of each module. It
// maintains a shared event bus.
type Engine struct {
	// A list of modules that will be run in this Engine. Module's lifetime is
	// bound to Engine's lifetime. Each Module will be ran in a separate routine.
	Modules []Module

	// Root this engine is running on
	ctx context.Context

	// Cancel function for root context, used for graceful shutdown
	cancel context.CancelFunc

	// The EventBus this engine managed. Publishers outside the engine (the feed
	// engine) write to it, modules subscribe to it.
	EventBus *gochannel.GoChannel
}

// NewEventBus returns the in-process bus. Publishing never waits for
// subscribers to ack.
func NewEventBus() *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            100,
			BlockPublishUntilSubscriberAck: false,
		},
		watermill.NewStdLogger(false, false),
	)
}

// Create a new Engine given the provided modules and event bus. The engine
// stops when parent ends or Shutdown is called.
func NewEngine(parent context.Context, ms []Module, e *gochannel.GoChannel) *Engine {
	ctx, cancel := context.WithCancel(parent)
	return &Engine{
		Modules:  ms,
		ctx:      ctx,
		cancel:   cancel,
		EventBus: e,
	}
}

// Execute all Engine modules and wait untils all modules to finish execution.
func (e *Engine) Run() {
	var wg sync.WaitGroup

	for _, m := range e.Modules {
		wg.Add(1)
		go func(m Module) {
			defer wg.Done()
			Logger.Log.Infof("start engine module %s", m.Name())
			RunModuleWithGracefulRestart(e.ctx, m)
			Logger.Log.Infof("module %s finished execution", m.Name())
		}(m)
	}

	// Block until all goroutine finished execution.
	wg.Wait()
}

// Shutdown cancels every module and closes the event bus. Run returns once the
// modules have returned.
func (e *Engine) Shutdown() {
	Logger.Log.Infoln("starting graceful shutdown of worker engine")
	e.cancel()
	if e.EventBus != nil {
		if err := e.EventBus.Close(); err != nil {
			Logger.Log.WithError(err).Warn("cannot close event bus")
		}
	}
}
