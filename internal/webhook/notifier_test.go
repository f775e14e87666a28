package webhook_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"image-batch-service/internal/webhook"
)

func TestNotifyDeliversPayload(t *testing.T) {
	var (
		gotBody        []byte
		gotContentType string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	n := webhook.NewNotifier(2 * time.Second)
	n.Notify(context.Background(), srv.URL, webhook.Payload{
		RequestID: "11111111-1111-1111-1111-111111111111",
		Status:    "COMPLETED",
		Message:   "CSV and image processing completed successfully.",
	})

	if gotContentType != "application/json" {
		t.Fatalf("expected application/json, got %q", gotContentType)
	}

	var decoded map[string]string
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("invalid payload json: %v", err)
	}
	if decoded["request_id"] != "11111111-1111-1111-1111-111111111111" {
		t.Fatalf("unexpected request_id: %q", decoded["request_id"])
	}
	if decoded["status"] != "COMPLETED" || decoded["message"] == "" {
		t.Fatalf("unexpected payload: %v", decoded)
	}
}

func TestNotifySwallowsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := webhook.NewNotifier(2 * time.Second)
	// must not panic or block past the timeout
	n.Notify(context.Background(), srv.URL, webhook.Payload{RequestID: "x", Status: "FAILED", Message: "m"})
}

func TestNotifySwallowsUnreachableURL(t *testing.T) {
	srv := httptest.NewServer(nil)
	deadURL := srv.URL
	srv.Close()

	n := webhook.NewNotifier(500 * time.Millisecond)
	n.Notify(context.Background(), deadURL, webhook.Payload{RequestID: "x", Status: "FAILED", Message: "m"})
}

func TestNotifyEmptyURLIsNoop(t *testing.T) {
	n := webhook.NewNotifier(time.Second)
	n.Notify(context.Background(), "", webhook.Payload{RequestID: "x", Status: "COMPLETED", Message: "m"})
}
