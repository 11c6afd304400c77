package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxStoreFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewOutboxStore(mock)

	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(pgxmock.AnyArg(), "appointment:appt-1", AppointmentCancelled, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	_, err = store.Append(context.Background(), AggregateKey(AppointmentAggregate, "appt-1"), cancelledEvent())
	require.NoError(t, err)

	now := time.Now().UTC()
	id := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "aggregate", "event_type", "payload", "created_at"}).
		AddRow(id, "appointment:appt-1", AppointmentCancelled, []byte(`{"event_id":"x"}`), now)
	mock.ExpectQuery("SELECT id, aggregate").WithArgs(int32(10)).WillReturnRows(rows)

	entries, err := store.FetchPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.Equal(t, AppointmentCancelled, entries[0].EventType)

	mock.ExpectExec("UPDATE outbox").WithArgs(id).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := store.MarkDelivered(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

type memorySource struct {
	entries   []OutboxEntry
	delivered map[uuid.UUID]bool
}

func (m *memorySource) FetchPending(context.Context, int32) ([]OutboxEntry, error) {
	var out []OutboxEntry
	for _, e := range m.entries {
		if !m.delivered[e.ID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memorySource) MarkDelivered(_ context.Context, id uuid.UUID) (bool, error) {
	if m.delivered[id] {
		return false, nil
	}
	m.delivered[id] = true
	return true, nil
}

type flakyHandler struct {
	fail map[uuid.UUID]bool
	seen []uuid.UUID
}

func (h *flakyHandler) Handle(_ context.Context, e OutboxEntry) error {
	h.seen = append(h.seen, e.ID)
	if h.fail[e.ID] {
		return errors.New("queue unavailable")
	}
	return nil
}

func TestDelivererSkipsFailedEntries(t *testing.T) {
	good, bad := uuid.New(), uuid.New()
	src := &memorySource{
		entries:   []OutboxEntry{{ID: good, EventType: AppointmentCreated}, {ID: bad, EventType: AppointmentDeleted}},
		delivered: map[uuid.UUID]bool{},
	}
	handler := &flakyHandler{fail: map[uuid.UUID]bool{bad: true}}
	d := NewDeliverer(src, handler, nil).WithBatchSize(5).WithInterval(time.Millisecond)

	assert.Equal(t, 1, d.drain(context.Background()))
	assert.True(t, src.delivered[good])
	assert.False(t, src.delivered[bad])

	handler.fail = nil
	assert.Equal(t, 1, d.drain(context.Background()))
	assert.True(t, src.delivered[bad])
}

func TestDelivererStopsOnCancel(t *testing.T) {
	src := &memorySource{delivered: map[uuid.UUID]bool{}}
	d := NewDeliverer(src, NewLogHandler(nil), nil).WithInterval(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deliverer did not stop")
	}
}

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func TestSQSPublisherHandle(t *testing.T) {
	client := &fakeSQS{}
	pub := NewSQSPublisher(client, "https://sqs.local/queue", nil)

	err := pub.Handle(context.Background(), OutboxEntry{ID: uuid.New(), Aggregate: "appointment:a", EventType: AppointmentAssigned, Payload: []byte(`{"ok":true}`)})
	require.NoError(t, err)
	require.Len(t, client.inputs, 1)
	assert.Equal(t, "https://sqs.local/queue", aws.ToString(client.inputs[0].QueueUrl))
	assert.Equal(t, `{"ok":true}`, aws.ToString(client.inputs[0].MessageBody))
	assert.Equal(t, AppointmentAssigned, aws.ToString(client.inputs[0].MessageAttributes["event_type"].StringValue))

	client.err = errors.New("throttled")
	assert.Error(t, pub.Handle(context.Background(), OutboxEntry{EventType: AppointmentAssigned}))
}

func TestSQSPublisherUnconfigured(t *testing.T) {
	assert.Error(t, NewSQSPublisher(nil, "", nil).Handle(context.Background(), OutboxEntry{}))
}
