package api

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/formype/lax-qlpm/internal/model"
	"github.com/formype/lax-qlpm/internal/store"
)

// streamEvents bridges a store subscription onto a server-sent event
// stream. subscribe must register a callback that forwards snapshots
// into the provided channel; the subscription is cancelled when the
// client disconnects, so no listener outlives its stream.
func streamEvents[T any](c *gin.Context, event string, subscribe func(chan T) store.CancelFunc) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	updates := make(chan T, 8)
	cancel := subscribe(updates)
	defer cancel()

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case snapshot := <-updates:
			c.SSEvent(event, snapshot)
			return true
		case <-clientGone:
			return false
		}
	})
}

// forward pushes a snapshot without blocking the publisher; when the
// client is slower than the writers, stale intermediate snapshots are
// dropped in favor of the newest one.
func forward[T any](updates chan T, snapshot T) {
	for {
		select {
		case updates <- snapshot:
			return
		default:
			select {
			case <-updates:
			default:
			}
		}
	}
}

// StreamAllMachines pushes the full machine collection on every change.
func (h *Handler) StreamAllMachines(c *gin.Context) {
	streamEvents(c, "machines", func(updates chan []model.MachineRecord) store.CancelFunc {
		return h.store.SubscribeToAllMachines(func(machines []model.MachineRecord) {
			forward(updates, machines)
		})
	})
}

// StreamLab pushes one lab's records on every change.
func (h *Handler) StreamLab(c *gin.Context) {
	labID := c.Param("labID")
	streamEvents(c, "machines", func(updates chan []model.MachineRecord) store.CancelFunc {
		return h.store.SubscribeToLab(labID, func(machines []model.MachineRecord) {
			forward(updates, machines)
		})
	})
}

// StreamMachineHistory pushes one machine's audit trail on every change.
func (h *Handler) StreamMachineHistory(c *gin.Context) {
	labID, number, ok := machineParams(c)
	if !ok {
		return
	}
	streamEvents(c, "history", func(updates chan []model.MachineHistoryEntry) store.CancelFunc {
		return h.store.SubscribeToMachineHistory(labID, number, func(entries []model.MachineHistoryEntry) {
			forward(updates, entries)
		})
	})
}

// StreamGlobalSettings pushes the shared settings on every change.
func (h *Handler) StreamGlobalSettings(c *gin.Context) {
	streamEvents(c, "settings", func(updates chan model.GlobalSettings) store.CancelFunc {
		return h.store.SubscribeToGlobalSettings(func(settings model.GlobalSettings) {
			forward(updates, settings)
		})
	})
}
