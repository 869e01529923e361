package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/rentdesk/internal/syncqueue"
	"go.uber.org/zap"
)

func TestShutdownEndsOpenStreamsAndDrainsQueue(t *testing.T) {
	streaming := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		close(streaming)
		<-r.Context().Done()
	})

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	httpServer := newHTTPServer(listener.Addr().String(), handler)
	served := make(chan error, 1)
	go func() {
		served <- httpServer.Serve(listener)
	}()

	response, err := http.Get("http://" + listener.Addr().String() + "/events")
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	defer response.Body.Close()
	<-streaming

	queueCtx, cancelQueue := context.WithCancel(context.Background())
	defer cancelQueue()
	queue := syncqueue.New(syncqueue.Config{})
	queue.Start(queueCtx)
	var synced atomic.Bool
	err = queue.Enqueue(syncqueue.Job{
		EntityID:  "tenant-1",
		Operation: "update",
		Run: func(context.Context) error {
			time.Sleep(100 * time.Millisecond)
			synced.Store(true)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}

	timeout := 2 * time.Second
	started := time.Now()
	if err := shutdown(httpServer, queue, zap.NewNop(), timeout); err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}
	if elapsed := time.Since(started); elapsed >= timeout {
		t.Fatalf("shutdown waited for the full timeout: %s", elapsed)
	}
	if !synced.Load() {
		t.Fatalf("expected queued job to run before shutdown returned")
	}
	if queue.Len() != 0 {
		t.Fatalf("expected drained queue, got %d pending", queue.Len())
	}
	if err := <-served; !errors.Is(err, http.ErrServerClosed) {
		t.Fatalf("expected server closed, got %v", err)
	}
}

func TestRetriesSettingDisablesRetriesForZero(t *testing.T) {
	testCases := []struct {
		configured int
		expected   int
	}{
		{configured: 0, expected: -1},
		{configured: 3, expected: 3},
	}
	for _, testCase := range testCases {
		if got := retriesSetting(testCase.configured); got != testCase.expected {
			t.Fatalf("retriesSetting(%d) = %d, want %d", testCase.configured, got, testCase.expected)
		}
	}
}
