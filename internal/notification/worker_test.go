package notification

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/formype/lax-qlpm/internal/db"
	"github.com/formype/lax-qlpm/internal/model"
	"github.com/formype/lax-qlpm/internal/parse"
)

// mockSender is a mock implementation of the Sender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:notif_%s?mode=memory&cache=shared",
		strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	return gormDB
}

// seedSubscription registers a push subscription watching the given machine.
func seedSubscription(t *testing.T, gormDB *gorm.DB, endpoint, machineID string) {
	t.Helper()
	machine := model.MachineRecord{ID: machineID, Status: model.StatusOnline, UpdatedAt: time.Now()}
	require.NoError(t, gormDB.Save(&machine).Error)

	sub := model.PushSubscription{
		Endpoint:  endpoint,
		P256DH:    "test_p256dh",
		Auth:      "test_auth",
		CreatedAt: time.Now(),
		Machines:  []*model.MachineRecord{&machine},
	}
	require.NoError(t, gormDB.Create(&sub).Error)
}

func TestWorkerPool_Dispatch(t *testing.T) {
	wp := NewWorkerPool(1, newTestDB(t), &webpush.Options{}, zap.NewNop())

	wp.Dispatch(parse.MachineKey("lab-1", 3))

	select {
	case job := <-wp.Jobs():
		assert.Equal(t, "lab-1_3", job)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	gormDB := newTestDB(t)
	wp := NewWorkerPool(1, gormDB, &webpush.Options{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	t.Run("sends alert for one subscription", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		machineID := parse.MachineKey("lab-1", 5)
		seedSubscription(t, gormDB, "https://example.com/push", machineID)

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				assert.Equal(t, "https://example.com/push", sub.Endpoint)
				assert.Equal(t, "Critical fault reported on machine #5 in lab-1", string(payload))
				wg.Done()
				return &http.Response{
					StatusCode: http.StatusCreated,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		wp.Dispatch(machineID)
		wg.Wait()
	})

	t.Run("labels the teacher unit", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		machineID := parse.MachineKey("lab-3", 0)
		seedSubscription(t, gormDB, "https://example.com/teacher", machineID)

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				assert.Equal(t, "Critical fault reported on teacher machine in lab-3", string(payload))
				wg.Done()
				return &http.Response{
					StatusCode: http.StatusCreated,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		wp.Dispatch(machineID)
		wg.Wait()
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		machineID := parse.MachineKey("lab-1", 7)
		seedSubscription(t, gormDB, "https://example.com/expired", machineID)

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusGone,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		wp.Dispatch(machineID)

		// A short sleep to allow the worker to process the job.
		time.Sleep(100 * time.Millisecond)

		var count int64
		require.NoError(t, gormDB.Model(&model.PushSubscription{}).
			Where("endpoint = ?", "https://example.com/expired").Count(&count).Error)
		assert.Zero(t, count)
	})

	t.Run("no subscriptions means no send", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				t.Error("unexpected send for machine without watchers")
				return nil, fmt.Errorf("unexpected")
			},
		}

		wp.Dispatch(parse.MachineKey("lab-1", 9))
		time.Sleep(100 * time.Millisecond)
	})
}
