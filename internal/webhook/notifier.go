package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"
)

// Payload is the terminal notification body sent to the client's
// webhook URL.
type Payload struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// Notifier delivers terminal job notifications. Delivery is best
// effort: one attempt, bounded timeout, every failure logged and
// swallowed. A webhook problem must never change a job's outcome.
type Notifier struct {
	client *http.Client
}

func NewNotifier(timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{client: &http.Client{Timeout: timeout}}
}

func (n *Notifier) Notify(ctx context.Context, url string, p Payload) {
	if url == "" {
		return
	}

	body, err := json.Marshal(p)
	if err != nil {
		log.Printf("[webhook] request_id=%s marshal error=%v", p.RequestID, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Printf("[webhook] request_id=%s build request error=%v", p.RequestID, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		log.Printf("[webhook] request_id=%s delivery error=%v", p.RequestID, err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("[webhook] request_id=%s status=%d delivery rejected", p.RequestID, resp.StatusCode)
		return
	}

	log.Printf("[webhook] request_id=%s status=%d delivered", p.RequestID, resp.StatusCode)
}
