// Package notification pushes web-push alerts to registered browsers
// when a machine lands in the ERROR state.
package notification

import (
	"context"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/formype/lax-qlpm/internal/model"
	"github.com/formype/lax-qlpm/internal/parse"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of Sender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool manages a pool of workers for sending fault alerts.
type WorkerPool struct {
	size    int
	jobs    chan string
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
	log     *zap.Logger
}

// NewWorkerPool creates a new worker pool. db must be the remote
// backend's handle; push subscriptions only exist there.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options, logger *zap.Logger) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan string, size),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     logger,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug("notification worker started", zap.Int("worker", id))
	for {
		select {
		case machineID := <-wp.jobs:
			wp.sendAlertsForMachine(ctx, machineID)
		case <-ctx.Done():
			wp.log.Debug("notification worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch queues a fault alert for the given machine.
func (wp *WorkerPool) Dispatch(machineID string) {
	wp.jobs <- machineID
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan string {
	return wp.jobs
}

// sendAlertsForMachine fetches subscriptions watching the machine and
// sends one notification each.
func (wp *WorkerPool) sendAlertsForMachine(ctx context.Context, machineID string) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_machine_mapping smm ON smm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("smm.machine_record_id = ?", machineID).
		Find(&subscriptions).Error
	if err != nil {
		wp.log.Error("failed to fetch subscriptions", zap.String("machine", machineID), zap.Error(err))
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	label := machineID
	if labID, n, err := parse.ParseMachineKey(machineID); err == nil {
		if n == 0 {
			label = fmt.Sprintf("teacher machine in %s", labID)
		} else {
			label = fmt.Sprintf("machine #%d in %s", n, labID)
		}
	}
	message := fmt.Sprintf("Critical fault reported on %s", label)

	wp.log.Info("sending fault alerts",
		zap.String("machine", machineID), zap.Int("subscriptions", len(subscriptions)))
	for _, sub := range subscriptions {
		wp.sendAlert(ctx, sub, []byte(message))
	}
}

func (wp *WorkerPool) sendAlert(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Error("failed to send alert", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	// Expired subscriptions are pruned on the spot.
	if resp.StatusCode == http.StatusGone {
		wp.log.Info("pruning expired push subscription", zap.String("endpoint", sub.Endpoint))
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			wp.log.Error("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}
