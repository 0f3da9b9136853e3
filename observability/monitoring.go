package observability

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// MonitoringStats is the snapshot served on the stats endpoint.
type MonitoringStats struct {
	ConnectedUsers int     `json:"connected_users"`
	Delivered      uint64  `json:"delivered"`
	Skipped        uint64  `json:"skipped"`
	Failed         uint64  `json:"failed"`
	DeliveryRate   float64 `json:"delivery_rate"` // delivered per second over the last interval
	AllocMemMb     uint64  `json:"alloc_mem_mb"`
	NumGC          uint32  `json:"num_gc"`
	NumGoroutine   int     `json:"num_goroutine"`
	UpdatedAt      string  `json:"updated_at"`
}

// MonitoringManager aggregates in-process delivery counters into a periodic snapshot.
type MonitoringManager struct {
	log         *slog.Logger
	interval    time.Duration
	presence    func() int
	mu          sync.RWMutex
	latestStats MonitoringStats

	delivered     atomic.Uint64
	skipped       atomic.Uint64
	failed        atomic.Uint64
	lastDelivered uint64
	lastCheck     time.Time
}

func NewMonitoringManager(log *slog.Logger, interval time.Duration, presence func() int) *MonitoringManager {
	return &MonitoringManager{
		log:       log,
		interval:  interval,
		presence:  presence,
		lastCheck: time.Now(),
	}
}

func (mm *MonitoringManager) IncrDelivered() { mm.delivered.Add(1) }
func (mm *MonitoringManager) IncrSkipped()   { mm.skipped.Add(1) }
func (mm *MonitoringManager) IncrFailed()    { mm.failed.Add(1) }

// Run refreshes the snapshot every interval until ctx is done.
func (mm *MonitoringManager) Run(ctx context.Context) error {
	ticker := time.NewTicker(mm.interval)
	defer ticker.Stop()

	mm.updateStats()
	for {
		select {
		case <-ctx.Done():
			mm.log.Debug("Monitoring manager stopped")
			return nil
		case <-ticker.C:
			mm.updateStats()
		}
	}
}

func (mm *MonitoringManager) updateStats() {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	now := time.Now()
	delivered := mm.delivered.Load()
	if duration := now.Sub(mm.lastCheck).Seconds(); duration > 0 {
		mm.latestStats.DeliveryRate = float64(delivered-mm.lastDelivered) / duration
	}
	mm.lastDelivered = delivered
	mm.lastCheck = now

	mm.latestStats.Delivered = delivered
	mm.latestStats.Skipped = mm.skipped.Load()
	mm.latestStats.Failed = mm.failed.Load()
	if mm.presence != nil {
		mm.latestStats.ConnectedUsers = mm.presence()
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	mm.latestStats.AllocMemMb = m.Alloc / 1024 / 1024
	mm.latestStats.NumGC = m.NumGC
	mm.latestStats.NumGoroutine = runtime.NumGoroutine()
	mm.latestStats.UpdatedAt = now.UTC().Format(time.RFC3339)

	mm.log.Debug("Stats updated",
		"connected_users", mm.latestStats.ConnectedUsers,
		"delivered", mm.latestStats.Delivered,
		"skipped", mm.latestStats.Skipped,
		"failed", mm.latestStats.Failed,
	)
}

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.latestStats
}
