// Package observability aggregates runtime counters for the chat core.
package observability

import (
	"context"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"
)

// MonitoringStats is the snapshot logged on every metric tick.
type MonitoringStats struct {
	MessagesPosted     uint64 `json:"messages_posted"`
	DuplicatesRejected uint64 `json:"duplicates_rejected"`
	RateLimitDenials   uint64 `json:"rate_limit_denials"`
	RoomsDeleted       uint64 `json:"rooms_deleted"`
	RoomSwitches       uint64 `json:"room_switches"`
	StoreErrors        uint64 `json:"store_errors"`
	AllocMemMb         uint64 `json:"alloc_mem_mb"`
	NumGC              uint32 `json:"num_gc"`
}

// MonitoringManager collects telemetry with atomic counters; services
// increment, the snapshot loop reads.
type MonitoringManager struct {
	log *slog.Logger

	MessagesPosted     atomic.Uint64
	DuplicatesRejected atomic.Uint64
	RateLimitDenials   atomic.Uint64
	RoomsDeleted       atomic.Uint64
	RoomSwitches       atomic.Uint64
	StoreErrors        atomic.Uint64
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{log: log}
}

func (m *MonitoringManager) Snapshot() MonitoringStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return MonitoringStats{
		MessagesPosted:     m.MessagesPosted.Load(),
		DuplicatesRejected: m.DuplicatesRejected.Load(),
		RateLimitDenials:   m.RateLimitDenials.Load(),
		RoomsDeleted:       m.RoomsDeleted.Load(),
		RoomSwitches:       m.RoomSwitches.Load(),
		StoreErrors:        m.StoreErrors.Load(),
		AllocMemMb:         mem.Alloc / 1024 / 1024,
		NumGC:              mem.NumGC,
	}
}

// Run logs a snapshot every interval until ctx is cancelled.
func (m *MonitoringManager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := m.Snapshot()
			m.log.Info("chat core stats",
				"messages_posted", stats.MessagesPosted,
				"duplicates_rejected", stats.DuplicatesRejected,
				"rate_limit_denials", stats.RateLimitDenials,
				"rooms_deleted", stats.RoomsDeleted,
				"room_switches", stats.RoomSwitches,
				"store_errors", stats.StoreErrors,
				"alloc_mem_mb", stats.AllocMemMb,
				"num_gc", stats.NumGC,
			)
		}
	}
}
