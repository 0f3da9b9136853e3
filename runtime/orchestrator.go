// Package runtime holds the real-time core: who is online, on which connection,
// and how an event reaches it. It contains no chat or notification rules.
package runtime

import (
	"context"
	"log/slog"
	"time"

	"social-lab/contract"
	"social-lab/observability"
)

// Orchestrator owns the presence registry, its router and the dispatcher,
// and runs the long-lived workers (router loop, monitoring) under the supervisor.
type Orchestrator struct {
	log        *slog.Logger
	supervisor contract.ISupervisor
	registry   *Registry
	router     *PresenceRouter
	dispatcher *Dispatcher
	monitoring *observability.MonitoringManager
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor,
	lifecycleBufferSize int, deliveryTimeout, monitoringInterval time.Duration) *Orchestrator {
	registry := NewRegistry()
	monitoring := observability.NewMonitoringManager(log, monitoringInterval, registry.Len)
	return &Orchestrator{
		log:        log,
		supervisor: supervisor,
		registry:   registry,
		router:     NewPresenceRouter(log, registry, lifecycleBufferSize),
		dispatcher: NewDispatcher(log, registry, deliveryTimeout, monitoring),
		monitoring: monitoring,
	}
}

func (o *Orchestrator) Presence() contract.IPresenceReader           { return o.registry }
func (o *Orchestrator) Router() contract.IPresenceRouter             { return o.router }
func (o *Orchestrator) Dispatcher() contract.IDispatcher             { return o.dispatcher }
func (o *Orchestrator) Monitoring() *observability.MonitoringManager { return o.monitoring }

// Start registers the workers and blocks until the supervisor stopped them.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.supervisor.Add(o.router, o.monitoring)
	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
	return nil
}

// Stop cancels the supervised workers and drops every presence mapping.
// Transports still open are closed by their own shutdown.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
	o.registry.Reset()
	observability.ConnectedUsers.Set(0)
}
