package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
	"github.com/northcraft/cabinetry-backend/pkg/pagination"
)

func openOutboxDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.Exec(`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		next_attempt_at DATETIME,
		last_error TEXT
	)`).Error)
	require.NoError(t, conn.Exec(`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME
	)`).Error)
	return conn
}

func TestEmitWritesEnvelope(t *testing.T) {
	conn := openOutboxDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))

	quoteID := uuid.New()
	actor := &ActorRef{UserID: uuid.New(), Role: "admin"}
	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventQuoteSent,
			AggregateType: enums.AggregateQuote,
			AggregateID:   quoteID,
			Actor:         actor,
			Data:          map[string]string{"quote_number": "Q-000001"},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, quoteID, rows[0].AggregateID)

	envelope, eventID, err := DecodeEnvelope(rows[0].Payload)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, eventID)
	require.Equal(t, 1, envelope.Version)
	require.Equal(t, actor.UserID, envelope.Actor.UserID)

	var data map[string]string
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	require.Equal(t, "Q-000001", data["quote_number"])
}

func TestEmitRejectsUnknownTypeAndMissingTx(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	require.Error(t, svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventQuoteSent}))

	conn := openOutboxDB(t)
	require.Error(t, svc.Emit(context.Background(), conn, DomainEvent{EventType: "quote.unknown"}))
}

func TestEmitIfNotExistsDeduplicates(t *testing.T) {
	conn := openOutboxDB(t)
	svc := NewService(NewRepository(conn), nil)
	scheduleID := uuid.New()
	event := DomainEvent{
		EventType:     enums.EventPaymentOverdue,
		AggregateType: enums.AggregatePaymentSchedule,
		AggregateID:   scheduleID,
		Data:          map[string]string{"milestone": "deposit"},
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, svc.EmitIfNotExists(context.Background(), conn, event))
	}
	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestPublishLifecycle(t *testing.T) {
	conn := openOutboxDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Emit(context.Background(), conn, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Data:          map[string]int{"i": i},
		}))
	}

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.NoError(t, repo.MarkPublishedTx(conn, rows[0].ID))
	require.NoError(t, repo.MarkFailedTx(conn, rows[1].ID, errors.New("pubsub unavailable")))
	require.NoError(t, repo.MarkTerminalTx(conn, rows[2].ID, errors.New("bad payload"), 5))

	pending, err := repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	require.Empty(t, pending, "failed row waits for backoff and terminal row is parked")

	var failed models.OutboxEvent
	require.NoError(t, conn.First(&failed, "id = ?", rows[1].ID).Error)
	require.Equal(t, 1, failed.AttemptCount)
	require.NotNil(t, failed.NextAttemptAt)
	require.True(t, failed.NextAttemptAt.After(time.Now().UTC()))
	require.Equal(t, "pubsub unavailable", *failed.LastError)

	deleted, err := repo.DeletePublishedBefore(context.Background(), time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)
}

func TestRetryDelay(t *testing.T) {
	require.Equal(t, 2*time.Second, RetryDelay(0))
	require.Equal(t, 2*time.Second, RetryDelay(1))
	require.Equal(t, 8*time.Second, RetryDelay(3))
	require.Equal(t, 10*time.Minute, RetryDelay(30))
}

func TestDLQRepositoryListPages(t *testing.T) {
	conn := openOutboxDB(t)
	dlq := NewDLQRepository(conn)
	base := time.Now().UTC().Add(-time.Hour)
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	msg := string(long)
	for i := 0; i < 3; i++ {
		require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
			EventID:       uuid.New(),
			EventType:     enums.EventQuoteSent,
			AggregateType: enums.AggregateQuote,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
			ErrorMessage:  &msg,
			FailedAt:      base.Add(time.Duration(i) * time.Minute),
		}))
	}

	first, next, err := dlq.List(context.Background(), pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.NotEmpty(t, next)
	require.Len(t, *first[0].ErrorMessage, maxDLQErrorLen)

	second, next, err := dlq.List(context.Background(), pagination.Params{Limit: 2, Cursor: next})
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Empty(t, next)

	found, err := dlq.FindByEventID(context.Background(), second[0].EventID)
	require.NoError(t, err)
	require.NotNil(t, found)
}
