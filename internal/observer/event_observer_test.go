package observer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/weld-inspector-go/internal/logger"
	"github.com/anime-shed/weld-inspector-go/pkg/models"
)

type recordingObserver struct {
	name   string
	mu     sync.Mutex
	events []SubmissionEvent
	done   chan struct{}
}

func newRecordingObserver(name string, expected int) *recordingObserver {
	return &recordingObserver{name: name, done: make(chan struct{}, expected)}
}

func (o *recordingObserver) OnEvent(ctx context.Context, event SubmissionEvent) {
	o.mu.Lock()
	o.events = append(o.events, event)
	o.mu.Unlock()
	o.done <- struct{}{}
}

func (o *recordingObserver) GetObserverName() string { return o.name }

func (o *recordingObserver) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-o.done:
		case <-time.After(time.Second):
			t.Fatalf("Timed out waiting for event %d", i+1)
		}
	}
}

type panickingObserver struct{}

func (panickingObserver) OnEvent(ctx context.Context, event SubmissionEvent) { panic("boom") }
func (panickingObserver) GetObserverName() string                            { return "panicking" }

func TestEventPublisher_NotifiesSubscribers(t *testing.T) {
	pub := NewEventPublisher()
	rec := newRecordingObserver("rec", 1)
	pub.Subscribe(panickingObserver{})
	pub.Subscribe(rec)

	pub.NotifyObservers(context.Background(), SubmissionEvent{EventType: SubmissionStarted, SubmissionID: "abc"})
	rec.wait(t, 1)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.events[0].SubmissionID != "abc" {
		t.Errorf("Expected submission id abc, got %q", rec.events[0].SubmissionID)
	}
	if rec.events[0].Timestamp.IsZero() {
		t.Error("Expected timestamp to be filled in")
	}
}

func TestEventPublisher_Unsubscribe(t *testing.T) {
	pub := NewEventPublisher()
	rec := newRecordingObserver("rec", 1)
	pub.Subscribe(rec)
	pub.Unsubscribe(rec)

	pub.NotifyObservers(context.Background(), SubmissionEvent{EventType: SubmissionStarted})

	select {
	case <-rec.done:
		t.Error("Did not expect unsubscribed observer to be notified")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMetricsObserver_Counts(t *testing.T) {
	m := NewMetricsObserver()
	ctx := context.Background()

	m.OnEvent(ctx, SubmissionEvent{EventType: SubmissionStarted})
	m.OnEvent(ctx, SubmissionEvent{EventType: SubmissionSucceeded, Duration: 200 * time.Millisecond})
	m.OnEvent(ctx, SubmissionEvent{EventType: SubmissionStarted})
	m.OnEvent(ctx, SubmissionEvent{EventType: SubmissionFailed})
	m.OnEvent(ctx, SubmissionEvent{EventType: ValidationFailed})

	metrics := m.GetMetrics()
	if metrics["total_submissions"].(int64) != 2 {
		t.Errorf("Expected 2 submissions, got %v", metrics["total_submissions"])
	}
	if metrics["succeeded"].(int64) != 1 || metrics["failed"].(int64) != 1 {
		t.Errorf("Unexpected outcome counts: %v", metrics)
	}
	if metrics["validation_failures"].(int64) != 1 {
		t.Errorf("Expected 1 validation failure, got %v", metrics["validation_failures"])
	}
	if metrics["avg_processing_time"].(time.Duration) != 200*time.Millisecond {
		t.Errorf("Expected 200ms average, got %v", metrics["avg_processing_time"])
	}
}

func TestLoggingObserver_LogsCause(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	obs := NewLoggingObserver(log)
	obs.OnEvent(context.Background(), SubmissionEvent{
		EventType:    SubmissionFailed,
		SubmissionID: "s-1",
		Err:          errors.New("dial tcp: connection refused"),
	})

	out := buf.String()
	if !strings.Contains(out, "connection refused") {
		t.Errorf("Expected cause in log output, got %s", out)
	}
	if !strings.Contains(out, `"level":"error"`) {
		t.Errorf("Expected error level, got %s", out)
	}
}

func TestNotifyResult_FireAndForget(t *testing.T) {
	got := make(chan models.Prediction, 1)
	obs := ResultFunc(func(ctx context.Context, p models.Prediction) {
		got <- p
	})

	NotifyResult(context.Background(), obs, models.Prediction{Status: "Accepted", Details: "0.97"})

	select {
	case p := <-got:
		if p.Status != "Accepted" || p.Details != "0.97" {
			t.Errorf("Unexpected payload %+v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("Observer was not called")
	}

	// Neither a nil nor a panicking observer may take the caller down
	NotifyResult(context.Background(), nil, models.Prediction{})
	NotifyResult(context.Background(), ResultFunc(func(context.Context, models.Prediction) { panic("observer bug") }), models.Prediction{})
	time.Sleep(20 * time.Millisecond)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type loggedPanickingObserver struct{}

func (loggedPanickingObserver) OnEvent(context.Context, SubmissionEvent) { panic("observer bug") }
func (loggedPanickingObserver) GetObserverName() string                  { return "panicking" }

func TestPanics_AreLoggedThroughPackageLogger(t *testing.T) {
	var appLog, stdLog lockedBuffer
	logger.SetOutput(&appLog)
	logrus.SetOutput(&stdLog)
	t.Cleanup(func() {
		logger.SetOutput(os.Stdout)
		logrus.SetOutput(os.Stderr)
	})

	NotifyResult(context.Background(), ResultFunc(func(context.Context, models.Prediction) { panic("callback bug") }), models.Prediction{})
	p := NewEventPublisher()
	p.Subscribe(loggedPanickingObserver{})
	p.NotifyObservers(context.Background(), SubmissionEvent{EventType: SubmissionStarted})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		out := appLog.String()
		if strings.Contains(out, "Result observer panicked") && strings.Contains(out, "Observer panicked while handling event") {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	out := appLog.String()
	if !strings.Contains(out, "Result observer panicked") || !strings.Contains(out, "Observer panicked while handling event") {
		t.Errorf("Expected both panics in the package logger output, got %q", out)
	}
	if stdLog.String() != "" {
		t.Errorf("Panics leaked to the standard logrus logger: %q", stdLog.String())
	}
}
