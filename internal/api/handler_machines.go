package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/formype/lax-qlpm/internal/model"
	"github.com/formype/lax-qlpm/internal/parse"
	"github.com/formype/lax-qlpm/internal/store"
)

// snapshotMachines grabs a one-shot snapshot through the subscription
// contract: the replay at subscribe time is synchronous, so cancelling
// immediately afterwards yields exactly the current state.
func snapshotMachines(subscribe func(func([]model.MachineRecord)) store.CancelFunc) []model.MachineRecord {
	var snapshot []model.MachineRecord
	cancel := subscribe(func(machines []model.MachineRecord) {
		snapshot = machines
	})
	cancel()
	if snapshot == nil {
		snapshot = []model.MachineRecord{}
	}
	return snapshot
}

// ListMachines returns every machine record across all labs, sorted by
// record id.
func (h *Handler) ListMachines(c *gin.Context) {
	c.JSON(http.StatusOK, snapshotMachines(h.store.SubscribeToAllMachines))
}

// ListLabMachines returns one lab's records sorted by machine number.
func (h *Handler) ListLabMachines(c *gin.Context) {
	labID := c.Param("labID")
	c.JSON(http.StatusOK, snapshotMachines(func(fn func([]model.MachineRecord)) store.CancelFunc {
		return h.store.SubscribeToLab(labID, fn)
	}))
}

// MachineHistory returns one machine's audit trail, newest first.
func (h *Handler) MachineHistory(c *gin.Context) {
	labID, number, ok := machineParams(c)
	if !ok {
		return
	}

	var snapshot []model.MachineHistoryEntry
	cancel := h.store.SubscribeToMachineHistory(labID, number, func(entries []model.MachineHistoryEntry) {
		snapshot = entries
	})
	cancel()
	if snapshot == nil {
		snapshot = []model.MachineHistoryEntry{}
	}
	c.JSON(http.StatusOK, snapshot)
}

type updateMachineRequest struct {
	Issues []string `json:"issues"`
	Note   string   `json:"note"`
	// LastUpdated is the display-formatted timestamp produced by the
	// client's locale; ordering never depends on it. Defaults to a
	// server-formatted date when omitted.
	LastUpdated string `json:"lastUpdated"`
}

// UpdateMachine saves a fault/maintenance report. The resulting status
// is derived from the reported issues; a critical fault also wakes the
// push notification workers.
func (h *Handler) UpdateMachine(c *gin.Context) {
	labID, number, ok := machineParams(c)
	if !ok {
		return
	}

	var req updateMachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.LastUpdated == "" {
		req.LastUpdated = time.Now().Format("02/01/2006, 15:04")
	}

	user := sessionUser(c)
	log := model.MachineLog{
		Issues:      req.Issues,
		Note:        req.Note,
		UpdatedBy:   user.FullName,
		LastUpdated: req.LastUpdated,
	}
	status := store.DeriveStatus(req.Issues, req.Note)

	if err := h.store.UpdateMachine(c.Request.Context(), labID, number, status, log); err != nil {
		h.abortStoreError(c, err)
		return
	}

	if status == model.StatusError && h.pool != nil {
		h.pool.Dispatch(parse.MachineKey(labID, number))
	}

	c.JSON(http.StatusOK, gin.H{"status": status})
}
