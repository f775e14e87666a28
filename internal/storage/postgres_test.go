package storage_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"image-batch-service/internal/storage"
)

type fakeInserter struct {
	data      map[uuid.UUID][]byte
	sourceURL string
	err       error
}

func (f *fakeInserter) Insert(ctx context.Context, id, jobID uuid.UUID, sourceURL string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	if f.data == nil {
		f.data = map[uuid.UUID][]byte{}
	}
	f.data[id] = data
	f.sourceURL = sourceURL
	return nil
}

func TestPostgresStoreLinkAndRoundTrip(t *testing.T) {
	ins := &fakeInserter{}
	st := storage.NewPostgresStore(ins, "http://localhost:8080/")

	jobID := uuid.New()
	imageID := uuid.New()
	payload := []byte("jpeg-bytes")

	link, err := st.Store(context.Background(), jobID, imageID, "https://img.example/a.png", payload)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := "http://localhost:8080/images/" + imageID.String()
	if link != want {
		t.Fatalf("expected link %q, got %q", want, link)
	}
	if !strings.HasSuffix(link, imageID.String()) {
		t.Fatalf("link must end in the image id: %q", link)
	}

	// the store's own read side returns the exact bytes that went in
	if !bytes.Equal(ins.data[imageID], payload) {
		t.Fatalf("stored bytes differ from input")
	}
	if ins.sourceURL != "https://img.example/a.png" {
		t.Fatalf("source url not recorded: %q", ins.sourceURL)
	}
}

func TestPostgresStorePropagatesInsertFailure(t *testing.T) {
	ins := &fakeInserter{err: errors.New("connection reset")}
	st := storage.NewPostgresStore(ins, "http://localhost:8080")

	link, err := st.Store(context.Background(), uuid.New(), uuid.New(), "https://img.example/a.png", []byte("x"))
	if err == nil {
		t.Fatal("expected an error")
	}
	if link != "" {
		t.Fatalf("no link must be handed out on failure, got %q", link)
	}
}
