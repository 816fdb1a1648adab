package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"
)

type senderStub struct {
	to   telebot.Recipient
	what interface{}
	err  error
}

func (s *senderStub) Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	s.to = to
	s.what = what
	return &telebot.Message{}, s.err
}

func TestTelegramNotifierSendsToChat(t *testing.T) {
	stub := &senderStub{}
	n := &TelegramNotifier{bot: stub, chatID: -1001}

	require.NoError(t, n.Notify(context.Background(), PublishedMessage("Grade 10A", 3)))
	assert.Equal(t, "-1001", stub.to.Recipient())
	assert.Contains(t, stub.what, "Timetable published: Grade 10A")
	assert.Contains(t, stub.what, "3 lessons")

	stub.err = errors.New("forbidden")
	assert.Error(t, n.Notify(context.Background(), PublishedMessage("Grade 10A", 0)))
}

func TestNewTelegramNotifierRequiresSettings(t *testing.T) {
	_, err := NewTelegramNotifier("", 1)
	assert.Error(t, err)
	_, err = NewTelegramNotifier("token", 0)
	assert.Error(t, err)
}

type notifierFunc func(ctx context.Context, msg Message) error

func (f notifierFunc) Notify(ctx context.Context, msg Message) error { return f(ctx, msg) }

type outcomeRecorder struct {
	mu      sync.Mutex
	results []bool
	done    chan struct{}
}

func (r *outcomeRecorder) record(msg Message, delivered bool) {
	r.mu.Lock()
	r.results = append(r.results, delivered)
	r.mu.Unlock()
	r.done <- struct{}{}
}

func TestDispatcherDeliversInBackground(t *testing.T) {
	rec := &outcomeRecorder{done: make(chan struct{}, 1)}
	release := make(chan struct{})
	d := NewDispatcher(notifierFunc(func(ctx context.Context, msg Message) error {
		<-release
		return nil
	}), DispatcherConfig{Outcome: rec.record})
	d.Start(context.Background())
	defer d.Stop()

	require.NoError(t, d.Notify(context.Background(), PublishedMessage("Grade 10A", 1)))
	close(release)

	select {
	case <-rec.done:
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}
	assert.Equal(t, []bool{true}, rec.results)
}

func TestDispatcherReportsFinalFailure(t *testing.T) {
	rec := &outcomeRecorder{done: make(chan struct{}, 1)}
	d := NewDispatcher(notifierFunc(func(ctx context.Context, msg Message) error {
		return errors.New("telegram down")
	}), DispatcherConfig{Retries: 1, RetryDelay: time.Millisecond, Outcome: rec.record})
	d.Start(context.Background())
	defer d.Stop()

	require.NoError(t, d.Notify(context.Background(), PublishedMessage("Grade 10A", 1)))
	select {
	case <-rec.done:
	case <-time.After(2 * time.Second):
		t.Fatal("failure not reported")
	}
	assert.Equal(t, []bool{false}, rec.results)
}

func TestDispatcherNotStarted(t *testing.T) {
	rec := &outcomeRecorder{done: make(chan struct{}, 1)}
	d := NewDispatcher(NewLogNotifier(nil), DispatcherConfig{Outcome: rec.record})
	assert.Error(t, d.Notify(context.Background(), PublishedMessage("Grade 10A", 1)))
	assert.Equal(t, []bool{false}, rec.results)
}
