package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/evaluation"
)

type mockWriter struct {
	WriteMessagesFunc func(ctx context.Context, msgs ...kafka.Message) error
	written           []kafka.Message
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.written = append(m.written, msgs...)
	if m.WriteMessagesFunc != nil {
		return m.WriteMessagesFunc(ctx, msgs...)
	}
	return nil
}

func (m *mockWriter) Close() error { return nil }

func TestPublisher_Publish(t *testing.T) {
	at := time.Date(2025, 12, 15, 8, 0, 0, 0, time.UTC)
	w := &mockWriter{}
	p := &Publisher{writer: w}

	err := p.Publish(context.Background(),
		evaluation.Event{Type: evaluation.EventPendingCreated, UserID: "u-1", OccurredAt: at, Payload: map[string]string{"id": "tpl_2025-12-15"}},
		evaluation.Event{Type: evaluation.EventBudgetWarning, UserID: "u-2", OccurredAt: at},
	)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(w.written) != 2 {
		t.Fatalf("wrote %d messages, want 2", len(w.written))
	}

	msg := w.written[0]
	if string(msg.Key) != "u-1" {
		t.Errorf("key = %q, want u-1", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != evaluation.EventPendingCreated {
		t.Errorf("headers = %+v", msg.Headers)
	}

	var decoded evaluation.Event
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if decoded.Type != evaluation.EventPendingCreated || decoded.UserID != "u-1" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestPublisher_NoEvents(t *testing.T) {
	w := &mockWriter{
		WriteMessagesFunc: func(ctx context.Context, msgs ...kafka.Message) error {
			t.Fatal("writer must not be called without events")
			return nil
		},
	}
	p := &Publisher{writer: w}
	if err := p.Publish(context.Background()); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
}

func TestPublisher_WriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := &Publisher{writer: &mockWriter{
		WriteMessagesFunc: func(ctx context.Context, msgs ...kafka.Message) error { return boom },
	}}

	err := p.Publish(context.Background(), evaluation.Event{Type: evaluation.EventExpenseWritten, UserID: "u-1"})
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
}

func TestBuildMessages_UnencodablePayload(t *testing.T) {
	_, err := buildMessages([]evaluation.Event{{Type: evaluation.EventBudgetWarning, Payload: make(chan int)}})
	if err == nil {
		t.Fatal("expected encode error")
	}
}
