package handlers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"example.com/receipt-tracker/backend/internal/models"
	"example.com/receipt-tracker/backend/internal/notifications"
)

// TestStreamPushesSnapshots проверяет снимок при подключении и после изменения.
func TestStreamPushesSnapshots(t *testing.T) {
	store := newMemoryStore(testReceipt("a", "2024-02-01", 100, "Home"))
	hub := notifications.NewHub()
	handler := NewStreamHandler(singleResolver{store: store}, hub, 0.8, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := newTestEcho()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx), rec)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = handler.Stream(c)
	}()

	deadline := time.Now().Add(time.Second)
	for hub.Subscribers(models.GuestProfileID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected stream to subscribe")
		}
		time.Sleep(5 * time.Millisecond)
	}

	_ = store.Upsert(context.Background(), testReceipt("b", "2024-02-02", 50, "Home"))
	hub.Publish(models.GuestProfileID, notifications.Event{Type: notifications.EventReceiptsChanged})

	time.Sleep(200 * time.Millisecond)
	cancel()
	<-done

	body := rec.Body.String()
	if strings.Count(body, "event: snapshot") != 2 {
		t.Fatalf("expected two snapshots, got body %q", body)
	}
	if !strings.Contains(body, "event: receipts_changed") {
		t.Fatalf("expected change event, got body %q", body)
	}
	if !strings.Contains(body, `"total_spent":150`) {
		t.Fatalf("expected refreshed totals, got body %q", body)
	}
}

// TestStreamOutlivesWriteTimeout проверяет, что поток не обрывается таймаутом записи сервера.
func TestStreamOutlivesWriteTimeout(t *testing.T) {
	hub := notifications.NewHub()
	handler := NewStreamHandler(singleResolver{store: newMemoryStore()}, hub, 0.8, nil)

	e := newTestEcho()
	e.GET("/stream", handler.Stream)

	server := httptest.NewUnstartedServer(e)
	server.Config.WriteTimeout = 100 * time.Millisecond
	server.Start()
	defer server.Close()

	resp, err := http.Get(server.URL + "/stream")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer resp.Body.Close()

	stop := make(chan struct{})
	defer close(stop)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
	}()

	waitFor := func(want string) {
		t.Helper()
		timeout := time.After(2 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					t.Fatalf("stream closed before %q", want)
				}
				if line == want {
					return
				}
			case <-timeout:
				t.Fatalf("timed out waiting for %q", want)
			}
		}
	}

	waitFor("event: snapshot")
	time.Sleep(300 * time.Millisecond)
	hub.Publish(models.GuestProfileID, notifications.Event{Type: notifications.EventReceiptsChanged})
	waitFor("event: receipts_changed")
}
