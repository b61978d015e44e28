package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northcraft/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
	"github.com/northcraft/cabinetry-backend/pkg/outbox"
)

type handledEvent struct {
	eventType enums.OutboxEventType
	data      string
}

type stubService struct {
	handled []handledEvent
	err     error
}

func (s *stubService) Handle(_ context.Context, eventType enums.OutboxEventType, data json.RawMessage) error {
	s.handled = append(s.handled, handledEvent{eventType: eventType, data: string(data)})
	return s.err
}

type memoryGuard struct {
	seen     map[uuid.UUID]bool
	err      error
	released []uuid.UUID
}

func (g *memoryGuard) CheckAndMarkProcessed(_ context.Context, _ string, eventID uuid.UUID) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	if g.seen[eventID] {
		return true, nil
	}
	g.seen[eventID] = true
	return false, nil
}

func (g *memoryGuard) Delete(_ context.Context, _ string, eventID uuid.UUID) error {
	delete(g.seen, eventID)
	g.released = append(g.released, eventID)
	return nil
}

type idleReceiver struct{}

func (idleReceiver) Receive(context.Context, func(context.Context, *pubsub.Message)) error {
	return nil
}

func newConsumer(t *testing.T, svc Service, guard *memoryGuard) *Consumer {
	t.Helper()
	consumer, err := NewConsumer(svc, idleReceiver{}, guard, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)
	return consumer
}

func message(t *testing.T, eventType enums.OutboxEventType, eventID uuid.UUID, data string) *pubsub.Message {
	t.Helper()
	body, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID.String(),
		OccurredAt: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Data:       json.RawMessage(data),
	})
	require.NoError(t, err)
	return &pubsub.Message{
		ID:         "msg-" + eventID.String()[:8],
		Data:       body,
		Attributes: map[string]string{"event_type": string(eventType)},
	}
}

func TestConsumerHandlesEachEventOnce(t *testing.T) {
	svc := &stubService{}
	guard := &memoryGuard{seen: map[uuid.UUID]bool{}}
	consumer := newConsumer(t, svc, guard)
	eventID := uuid.New()
	msg := message(t, enums.EventQuoteSent, eventID, `{"quote_number":"Q-000101"}`)

	assert.False(t, consumer.process(context.Background(), msg).nack)
	assert.False(t, consumer.process(context.Background(), msg).nack)

	require.Len(t, svc.handled, 1)
	assert.Equal(t, enums.EventQuoteSent, svc.handled[0].eventType)
	assert.JSONEq(t, `{"quote_number":"Q-000101"}`, svc.handled[0].data)
}

func TestConsumerRetriesTransientFailures(t *testing.T) {
	svc := &stubService{err: pkgerrors.New(pkgerrors.CodeDependency, "sendgrid down")}
	guard := &memoryGuard{seen: map[uuid.UUID]bool{}}
	consumer := newConsumer(t, svc, guard)
	eventID := uuid.New()

	assert.True(t, consumer.process(context.Background(), message(t, enums.EventOrderCreated, eventID, `{}`)).nack)
	assert.Equal(t, []uuid.UUID{eventID}, guard.released)
	assert.False(t, guard.seen[eventID])
}

func TestConsumerAcksPermanentFailures(t *testing.T) {
	svc := &stubService{err: pkgerrors.New(pkgerrors.CodeValidation, "bad payload")}
	guard := &memoryGuard{seen: map[uuid.UUID]bool{}}
	consumer := newConsumer(t, svc, guard)

	assert.False(t, consumer.process(context.Background(), message(t, enums.EventOrderCreated, uuid.New(), `{}`)).nack)
	assert.Empty(t, guard.released)

	garbage := &pubsub.Message{ID: "garbage", Data: []byte("not json")}
	assert.False(t, consumer.process(context.Background(), garbage).nack)
	assert.Len(t, svc.handled, 1)
}

func TestConsumerNacksWhenIdempotencyUnavailable(t *testing.T) {
	svc := &stubService{}
	guard := &memoryGuard{seen: map[uuid.UUID]bool{}, err: errors.New("redis unavailable")}
	consumer := newConsumer(t, svc, guard)

	assert.True(t, consumer.process(context.Background(), message(t, enums.EventPaymentOverdue, uuid.New(), `{}`)).nack)
	assert.Empty(t, svc.handled)
}
