package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/formype/lax-qlpm/internal/model"
	"github.com/formype/lax-qlpm/internal/store"
)

type putSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	P256DH   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
	// Machine record ids ("lab-1_15") this browser wants fault alerts for.
	SubscribedMachines []string `json:"subscribed_machines"`
}

// PutSubscription creates or replaces a push subscription. Push
// subscriptions live in the remote database only.
func (h *Handler) PutSubscription(c *gin.Context) {
	if !h.store.IsRemote() {
		h.abortStoreError(c, store.ErrOfflineUnsupported)
		return
	}

	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	subscription := model.PushSubscription{
		Endpoint: req.Endpoint,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
	}

	err := h.store.DB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Create(&subscription).Error; err != nil {
			return err
		}

		var machines []model.MachineRecord
		if len(req.SubscribedMachines) > 0 {
			if err := tx.Find(&machines, "id IN ?", req.SubscribedMachines).Error; err != nil {
				return err
			}
		}

		return tx.Model(&subscription).Association("Machines").Replace(&machines)
	})
	if err != nil {
		h.abortStoreError(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription removes a push subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	if !h.store.IsRemote() {
		h.abortStoreError(c, store.ErrOfflineUnsupported)
		return
	}

	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.DB().Delete(&model.PushSubscription{Endpoint: req.Endpoint}).Error; err != nil {
		h.abortStoreError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetSubscription returns the machine ids a registered endpoint watches.
func (h *Handler) GetSubscription(c *gin.Context) {
	if !h.store.IsRemote() {
		h.abortStoreError(c, store.ErrOfflineUnsupported)
		return
	}

	endpoint := c.Query("endpoint")
	if endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
		return
	}

	var subscription model.PushSubscription
	err := h.store.DB().Preload("Machines").First(&subscription, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		return
	}
	if err != nil {
		h.abortStoreError(c, err)
		return
	}

	machineIDs := make([]string, len(subscription.Machines))
	for i, machine := range subscription.Machines {
		machineIDs[i] = machine.ID
	}
	c.JSON(http.StatusOK, gin.H{"subscribed_machines": machineIDs})
}

// GetVAPIDPublicKey returns the VAPID public key to the client.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	if h.webpush == nil || h.webpush.VAPIDPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vapid keys are not configured"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"public_key": h.webpush.VAPIDPublicKey})
}
