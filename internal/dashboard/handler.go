package dashboard

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/rowboatdb/rowboat/internal/syncer"
)

// Handler bridges sync engine events to dashboard messages. It keeps
// cumulative statistics and rebroadcasts them after every run.
type Handler struct {
	server *Server
	logger *log.Logger

	mu    sync.Mutex
	stats StatsData
}

// NewHandler creates an event handler connected to a dashboard server.
// The handler plugs into syncer.Options.Sinks.
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}

	return &Handler{
		server: server,
		logger: logger,
	}
}

// SyncStarted handles run start events
func (h *Handler) SyncStarted(runID string) {
	h.mu.Lock()
	h.stats.Runs++
	h.stats.LastRunID = runID
	h.mu.Unlock()

	h.send(MessageTypeRunStarted, RunStartedData{RunID: runID})
}

// TableDiffed handles per-table diff events
func (h *Handler) TableDiffed(runID, table string, rows int64) {
	h.send(MessageTypeTableDiffed, TableEventData{RunID: runID, Table: table, Rows: rows})
}

// TableApplied handles per-table apply events
func (h *Handler) TableApplied(runID, table string, rows int64) {
	h.mu.Lock()
	h.stats.RowsApplied += rows
	h.mu.Unlock()

	h.send(MessageTypeTableApplied, TableEventData{RunID: runID, Table: table, Rows: rows})
}

// SyncCompleted handles run commit events
func (h *Handler) SyncCompleted(runID string, report *syncer.Report) {
	h.mu.Lock()
	h.stats.Committed++
	h.stats.LastResult = "committed"
	h.mu.Unlock()

	data := RunCompletedData{RunID: runID}
	if report != nil {
		data.RowsTotal = report.RowsTotal
		data.Tables = len(report.Tables)
		data.Duration = report.Elapsed
		h.logger.Printf("Run %s committed: %d row(s) in %v", runID, report.RowsTotal, report.Elapsed)
	}

	h.send(MessageTypeRunCompleted, data)
	h.broadcastStats()
}

// SyncFailed handles run abort events
func (h *Handler) SyncFailed(runID string, err error) {
	h.mu.Lock()
	h.stats.Failed++
	h.stats.LastResult = "failed"
	h.mu.Unlock()

	h.logger.Printf("Run %s failed: %v", runID, err)
	h.send(MessageTypeRunFailed, RunFailedData{RunID: runID, Error: err.Error()})
	h.broadcastStats()
}

// GetStats returns the current statistics
func (h *Handler) GetStats() StatsData {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

func (h *Handler) send(typ MessageType, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", typ, err)
		return
	}

	h.server.Broadcast(Message{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      dataJSON,
	})
}

// broadcastStats sends current statistics to all clients
func (h *Handler) broadcastStats() {
	h.mu.Lock()
	stats := h.stats
	h.mu.Unlock()

	h.send(MessageTypeStats, stats)
}
