package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/keylease/keylease/internal/logging"
)

func TestTriggerRunsTask(t *testing.T) {
	m := NewManager(context.Background())

	ran := make(chan struct{})
	m.Register("sweep", 0, func(_ context.Context, logger logging.InternalLogger) error {
		logger.Info("sweep ran")
		close(ran)
		return nil
	})

	if err := m.Trigger("sweep"); err != nil {
		t.Fatalf("Trigger() failed: %v", err)
	}
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("task did not run")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		logs, err := m.GetLogs("sweep")
		if err != nil {
			t.Fatalf("GetLogs() failed: %v", err)
		}
		found := false
		for _, entry := range logs {
			if entry.Message == "sweep ran" {
				found = true
			}
		}
		if found {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("task output never reached the log buffer")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestUnknownTask(t *testing.T) {
	m := NewManager(context.Background())

	var notFound TaskNotFoundError
	if err := m.Trigger("nope"); !errors.As(err, &notFound) {
		t.Errorf("Trigger() error = %v, want TaskNotFoundError", err)
	}
	if _, err := m.GetLogs("nope"); !errors.As(err, &notFound) {
		t.Errorf("GetLogs() error = %v, want TaskNotFoundError", err)
	}
}

func TestListStatus(t *testing.T) {
	m := NewManager(context.Background())
	m.Register("a", 0, func(context.Context, logging.InternalLogger) error { return nil })
	m.Register("b", 0, func(context.Context, logging.InternalLogger) error { return nil })

	statuses := m.ListStatus()
	if len(statuses) != 2 {
		t.Fatalf("ListStatus() = %d task(s), want 2", len(statuses))
	}
}
