package worker_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"image-batch-service/internal/entity"
	"image-batch-service/internal/imaging"
	"image-batch-service/internal/worker"
)

// ---- fakes ----

type fakeTransformer struct {
	calls []string
	fail  map[string]error
	panic bool
}

func (f *fakeTransformer) Transform(ctx context.Context, sourceURL string) ([]byte, error) {
	if f.panic {
		panic("transformer exploded")
	}
	f.calls = append(f.calls, sourceURL)
	if err, ok := f.fail[sourceURL]; ok {
		return nil, err
	}
	return []byte("jpeg-bytes"), nil
}

type fakeStore struct {
	links []string
	err   error
}

func (f *fakeStore) Store(ctx context.Context, jobID, imageID uuid.UUID, sourceURL string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	link := "http://localhost:8080/images/" + imageID.String()
	f.links = append(f.links, link)
	return link, nil
}

type fakeProgress struct {
	calls []int
	err   error
}

func (f *fakeProgress) RecordProgress(ctx context.Context, jobID uuid.UUID, percentage int) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, percentage)
	return nil
}

func fetchErr(url string) error {
	return &imaging.Error{Kind: imaging.KindFetch, URL: url, Err: errors.New("unexpected status 404")}
}

// ---- tests ----

func TestProcessRowsAllImagesSucceed(t *testing.T) {
	tr := &fakeTransformer{}
	st := &fakeStore{}
	pr := &fakeProgress{}
	orch := worker.NewOrchestrator(tr, st, pr)

	rows := []entity.Row{
		{ProductName: "SKU1", ImageURLs: []string{"https://img.example/a.png", "https://img.example/b.png"}},
	}

	out := orch.ProcessRows(context.Background(), uuid.New(), rows)

	if out.Err != nil {
		t.Fatalf("expected no hard failure, got %v", out.Err)
	}
	if out.RowsSucceeded != 1 || out.RowsWithFailures != 0 {
		t.Fatalf("unexpected row counts: %+v", out)
	}
	if len(out.ArtifactLinks) != 2 || len(st.links) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(out.ArtifactLinks))
	}
	if len(pr.calls) != 1 || pr.calls[0] != 100 {
		t.Fatalf("expected progress [100], got %v", pr.calls)
	}
}

func TestProcessRowsIsolatesImageFailures(t *testing.T) {
	badURL := "https://img.example/missing.png"
	tr := &fakeTransformer{fail: map[string]error{badURL: fetchErr(badURL)}}
	st := &fakeStore{}
	pr := &fakeProgress{}
	orch := worker.NewOrchestrator(tr, st, pr)

	rows := []entity.Row{
		{ProductName: "SKU1", ImageURLs: []string{"https://img.example/a.png"}},
		{ProductName: "SKU2", ImageURLs: []string{badURL}},
		{ProductName: "SKU3", ImageURLs: []string{"https://img.example/c.png"}},
	}

	out := orch.ProcessRows(context.Background(), uuid.New(), rows)

	if out.Err != nil {
		t.Fatalf("per-image failures must not fail the run, got %v", out.Err)
	}
	if out.RowsSucceeded != 2 || out.RowsWithFailures != 1 {
		t.Fatalf("unexpected row counts: %+v", out)
	}
	if len(out.ImageFailures) != 1 {
		t.Fatalf("expected 1 recorded failure, got %d", len(out.ImageFailures))
	}
	if out.ImageFailures[0].URL != badURL || out.ImageFailures[0].Kind != imaging.KindFetch {
		t.Fatalf("unexpected failure detail: %+v", out.ImageFailures[0])
	}
	if len(out.ArtifactLinks) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(out.ArtifactLinks))
	}

	// progress is monotonically non-decreasing and ends at 100
	prev := 0
	for _, p := range pr.calls {
		if p < prev {
			t.Fatalf("progress went backwards: %v", pr.calls)
		}
		prev = p
	}
	if prev != 100 {
		t.Fatalf("expected final progress 100, got %v", pr.calls)
	}
}

func TestProcessRowsEmptyInput(t *testing.T) {
	orch := worker.NewOrchestrator(&fakeTransformer{}, &fakeStore{}, &fakeProgress{})

	out := orch.ProcessRows(context.Background(), uuid.New(), nil)

	if !errors.Is(out.Err, worker.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", out.Err)
	}
}

func TestProcessRowsTrimsAndSkipsEmptyURLEntries(t *testing.T) {
	tr := &fakeTransformer{}
	orch := worker.NewOrchestrator(tr, &fakeStore{}, &fakeProgress{})

	rows := []entity.Row{
		{ProductName: "SKU1", ImageURLs: []string{"  https://img.example/a.png  ", "", "   "}},
	}

	out := orch.ProcessRows(context.Background(), uuid.New(), rows)

	if out.Err != nil {
		t.Fatalf("expected no hard failure, got %v", out.Err)
	}
	if len(tr.calls) != 1 || tr.calls[0] != "https://img.example/a.png" {
		t.Fatalf("expected one trimmed transform call, got %v", tr.calls)
	}
	if out.RowsSucceeded != 1 {
		t.Fatalf("row with only blank entries after one good URL should succeed: %+v", out)
	}
}

func TestProcessRowsReportsEncodeFailureKind(t *testing.T) {
	badURL := "https://img.example/cursed.png"
	tr := &fakeTransformer{fail: map[string]error{
		badURL: &imaging.Error{Kind: imaging.KindEncode, URL: badURL, Err: errors.New("encode jpeg: short write")},
	}}
	orch := worker.NewOrchestrator(tr, &fakeStore{}, &fakeProgress{})

	rows := []entity.Row{
		{ProductName: "SKU1", ImageURLs: []string{badURL}},
	}

	out := orch.ProcessRows(context.Background(), uuid.New(), rows)

	if out.Err != nil {
		t.Fatalf("encode failures are per-image detail, got hard failure %v", out.Err)
	}
	if len(out.ImageFailures) != 1 || out.ImageFailures[0].Kind != imaging.KindEncode {
		t.Fatalf("expected one encode failure, got %+v", out.ImageFailures)
	}
}

func TestProcessRowsStoreFailureIsPerImage(t *testing.T) {
	tr := &fakeTransformer{}
	st := &fakeStore{err: errors.New("persist image: connection reset")}
	pr := &fakeProgress{}
	orch := worker.NewOrchestrator(tr, st, pr)

	rows := []entity.Row{
		{ProductName: "SKU1", ImageURLs: []string{"https://img.example/a.png"}},
	}

	out := orch.ProcessRows(context.Background(), uuid.New(), rows)

	if out.Err != nil {
		t.Fatalf("store failures are per-image detail, got hard failure %v", out.Err)
	}
	if len(out.ImageFailures) != 1 || out.ImageFailures[0].Kind != imaging.KindPersist {
		t.Fatalf("expected one persist failure, got %+v", out.ImageFailures)
	}
	if out.RowsWithFailures != 1 {
		t.Fatalf("expected 1 failed row, got %+v", out)
	}
}

func TestProcessRowsAbortsWhenProgressWriteFails(t *testing.T) {
	tr := &fakeTransformer{}
	pr := &fakeProgress{err: errors.New("connection refused")}
	orch := worker.NewOrchestrator(tr, &fakeStore{}, pr)

	rows := []entity.Row{
		{ProductName: "SKU1", ImageURLs: []string{"https://img.example/a.png"}},
		{ProductName: "SKU2", ImageURLs: []string{"https://img.example/b.png"}},
	}

	out := orch.ProcessRows(context.Background(), uuid.New(), rows)

	if out.Err == nil {
		t.Fatal("expected a hard failure when progress cannot be persisted")
	}
	if !strings.Contains(out.Err.Error(), "record progress") {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	// the run stops after the first row; the second is never touched
	if len(tr.calls) != 1 {
		t.Fatalf("expected processing to stop after first row, calls=%v", tr.calls)
	}
}
