package imaging_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"image-batch-service/internal/imaging"
)

func pngWithAlpha(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 30, B: 30, A: 128})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestTransformReencodesAsJPEG(t *testing.T) {
	payload := pngWithAlpha(t, 8, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	tr := imaging.NewTransformer(imaging.DefaultQuality, 0)

	out, err := tr.Transform(context.Background(), srv.URL+"/img.png")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	decoded, format, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a decodable image: %v", err)
	}
	if format != "jpeg" {
		t.Fatalf("expected jpeg output, got %s", format)
	}
	if decoded.Bounds().Dx() != 8 || decoded.Bounds().Dy() != 8 {
		t.Fatalf("unexpected bounds: %v", decoded.Bounds())
	}
}

func TestTransformDownscalesToMaxDimension(t *testing.T) {
	payload := pngWithAlpha(t, 64, 32)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	tr := imaging.NewTransformer(imaging.DefaultQuality, 16)

	out, err := tr.Transform(context.Background(), srv.URL+"/img.png")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	decoded, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if decoded.Bounds().Dx() > 16 || decoded.Bounds().Dy() > 16 {
		t.Fatalf("expected bounds within 16x16, got %v", decoded.Bounds())
	}
}

func TestTransformNon2xxIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	tr := imaging.NewTransformer(imaging.DefaultQuality, 0)

	_, err := tr.Transform(context.Background(), srv.URL+"/missing.png")

	var ie *imaging.Error
	if !errors.As(err, &ie) {
		t.Fatalf("expected imaging.Error, got %v", err)
	}
	if ie.Kind != imaging.KindFetch {
		t.Fatalf("expected fetch kind, got %s", ie.Kind)
	}
}

func TestTransformNonImageIsDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("definitely not an image"))
	}))
	defer srv.Close()

	tr := imaging.NewTransformer(imaging.DefaultQuality, 0)

	_, err := tr.Transform(context.Background(), srv.URL+"/bad")

	var ie *imaging.Error
	if !errors.As(err, &ie) {
		t.Fatalf("expected imaging.Error, got %v", err)
	}
	if ie.Kind != imaging.KindDecode {
		t.Fatalf("expected decode kind, got %s", ie.Kind)
	}
}

func TestTransformRejectsMalformedURL(t *testing.T) {
	tr := imaging.NewTransformer(imaging.DefaultQuality, 0)

	_, err := tr.Transform(context.Background(), "not-a-url")

	var ie *imaging.Error
	if !errors.As(err, &ie) {
		t.Fatalf("expected imaging.Error, got %v", err)
	}
	if ie.Kind != imaging.KindFetch {
		t.Fatalf("expected fetch kind, got %s", ie.Kind)
	}
}
