package notify_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/solvieth/verslun-api/internal/common"
	"github.com/solvieth/verslun-api/internal/events"
	"github.com/solvieth/verslun-api/internal/notify"
	"github.com/solvieth/verslun-api/internal/store"
)

type captureQueue struct {
	tasks []*asynq.Task
}

func (q *captureQueue) Enqueue(task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func TestNotifyEnqueuesEmailForOrderPaid(t *testing.T) {
	queue := &captureQueue{}
	n := notify.EmailNotifier{Queue: queue, Enabled: true, Logger: zerolog.Nop()}

	payload, _ := json.Marshal(map[string]any{"email": "buyer@example.is", "name": "Jón"})
	err := n.Notify(context.Background(), store.DomainEvent{
		ID:      uuid.New(),
		Topic:   events.TopicOrderPaid,
		Payload: payload,
	})
	require.NoError(t, err)
	require.Len(t, queue.tasks, 1)
	require.Equal(t, notify.TaskEmailConfirmation, queue.tasks[0].Type())

	var msg notify.EmailTask
	require.NoError(t, json.Unmarshal(queue.tasks[0].Payload(), &msg))
	require.Equal(t, "buyer@example.is", msg.To)
	require.Contains(t, msg.HTML, "Jón")
}

func TestNotifySkipsEventsWithoutRecipient(t *testing.T) {
	queue := &captureQueue{}
	n := notify.EmailNotifier{Queue: queue, Enabled: true, Logger: zerolog.Nop()}

	err := n.Notify(context.Background(), store.DomainEvent{
		ID:      uuid.New(),
		Topic:   events.TopicOrderPaid,
		Payload: []byte(`{}`),
	})
	require.NoError(t, err)
	require.Empty(t, queue.tasks)
}

func TestNotifyDisabled(t *testing.T) {
	queue := &captureQueue{}
	n := notify.EmailNotifier{Queue: queue, Enabled: false, Logger: zerolog.Nop()}

	err := n.Notify(context.Background(), store.DomainEvent{ID: uuid.New(), Topic: events.TopicOrderPaid})
	require.NoError(t, err)
	require.Empty(t, queue.tasks)
}

func TestEmailWorkerDelivers(t *testing.T) {
	mail := &common.InMemoryEmail{}
	worker := notify.EmailWorker{Mail: mail, Logger: zerolog.Nop()}

	task, err := notify.NewEmailTask(notify.EmailTask{To: "a@b.is", Subject: "s", HTML: "<p>hi</p>"})
	require.NoError(t, err)
	require.NoError(t, worker.Handle(context.Background(), task))
	require.Len(t, mail.Outbox, 1)
	require.Equal(t, "a@b.is", mail.Outbox[0].To)
}
