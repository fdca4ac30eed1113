package amqp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

type ackCall struct {
	ack     bool
	requeue bool
}

type fakeAcknowledger struct {
	calls []ackCall
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.calls = append(f.calls, ackCall{ack: true})
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.calls = append(f.calls, ackCall{requeue: requeue})
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	f.calls = append(f.calls, ackCall{requeue: requeue})
	return nil
}

func delivery(ack amqp091.Acknowledger, body string) amqp091.Delivery {
	return amqp091.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(body)}
}

func TestHandleDelivery(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		handlerErr error
		want       ackCall
		wantCalled bool
	}{
		{
			name:       "success acks",
			body:       `{"id":7,"year":2020}`,
			want:       ackCall{ack: true},
			wantCalled: true,
		},
		{
			name: "invalid json is dropped",
			body: `not json`,
			want: ackCall{requeue: false},
		},
		{
			name: "missing id is dropped",
			body: `{"year":2020}`,
			want: ackCall{requeue: false},
		},
		{
			name:       "handler error requeues",
			body:       `{"id":7,"year":2020}`,
			handlerErr: errors.New("store unavailable"),
			want:       ackCall{requeue: true},
			wantCalled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAcknowledger{}
			called := false
			handleDelivery(context.Background(), delivery(ack, tt.body), func(_ context.Context, m *RecordCreatedMessage) error {
				called = true
				if m.ID != 7 || m.Year != 2020 {
					t.Errorf("unexpected message %+v", m)
				}
				return tt.handlerErr
			})

			if called != tt.wantCalled {
				t.Fatalf("handler called = %v, want %v", called, tt.wantCalled)
			}
			if len(ack.calls) != 1 || ack.calls[0] != tt.want {
				t.Fatalf("ack calls = %+v, want [%+v]", ack.calls, tt.want)
			}
		})
	}
}

func TestConsumeStopsOnCancelAndClose(t *testing.T) {
	msgs := make(chan amqp091.Delivery, 1)
	ack := &fakeAcknowledger{}
	msgs <- delivery(ack, `{"id":1,"year":2021}`)

	ctx, cancel := context.WithCancel(context.Background())
	handled := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		errCh <- consume(ctx, msgs, func(context.Context, *RecordCreatedMessage) error {
			close(handled)
			return nil
		})
	}()

	select {
	case <-handled:
	case <-time.After(time.Second):
		t.Fatal("message was not handled")
	}
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("consume did not stop on cancel")
	}

	closed := make(chan amqp091.Delivery)
	close(closed)
	if err := consume(context.Background(), closed, nil); err == nil {
		t.Fatal("expected error on closed channel")
	}
}

func TestNewRecordCreatedMessage(t *testing.T) {
	msg := NewRecordCreatedMessage(3, 2022)
	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := RecordCreatedMessageFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ID != 3 || decoded.Year != 2022 || decoded.Timestamp.IsZero() {
		t.Fatalf("unexpected decoded message %+v", decoded)
	}
}
