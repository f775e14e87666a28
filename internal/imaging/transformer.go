package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"time"

	_ "github.com/chai2010/webp" // registers webp decoding
	"github.com/disintegration/imaging"
)

const (
	DefaultQuality = 50
	minQuality     = 1
	maxQuality     = 95

	defaultFetchTimeout = 10 * time.Second

	// Hard cap on a fetched payload. Anything larger is treated as a
	// fetch failure rather than handed to the decoder.
	maxImageBytes = 32 << 20
)

type ErrorKind string

const (
	KindFetch   ErrorKind = "fetch"
	KindDecode  ErrorKind = "decode"
	KindEncode  ErrorKind = "encode"
	KindPersist ErrorKind = "persist"
)

// Error records which stage of handling a single image failed, so the
// caller can aggregate failures by kind without matching on strings.
type Error struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transformer fetches one image by URL and re-encodes it as JPEG at a
// fixed quality. It is stateless and safe for concurrent use; retry
// policy belongs to the caller.
type Transformer struct {
	client  *http.Client
	quality int
	maxDim  int
}

// NewTransformer builds a transformer encoding at the given quality
// (clamped to the default when out of [1,95]). maxDim > 0 additionally
// downscales images so neither side exceeds it.
func NewTransformer(quality, maxDim int) *Transformer {
	if quality < minQuality || quality > maxQuality {
		quality = DefaultQuality
	}
	if maxDim < 0 {
		maxDim = 0
	}
	return &Transformer{
		client:  &http.Client{Timeout: defaultFetchTimeout},
		quality: quality,
		maxDim:  maxDim,
	}
}

// Transform downloads the image, flattens any alpha channel onto an
// opaque background and returns the JPEG-encoded bytes. On failure no
// partial state is left behind.
func (t *Transformer) Transform(ctx context.Context, sourceURL string) ([]byte, error) {
	if _, err := url.ParseRequestURI(sourceURL); err != nil {
		return nil, &Error{Kind: KindFetch, URL: sourceURL, Err: err}
	}

	body, err := t.fetch(ctx, sourceURL)
	if err != nil {
		return nil, &Error{Kind: KindFetch, URL: sourceURL, Err: err}
	}

	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindDecode, URL: sourceURL, Err: err}
	}

	if t.maxDim > 0 {
		img = downscale(img, t.maxDim)
	}
	img = flatten(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: t.quality}); err != nil {
		return nil, &Error{Kind: KindEncode, URL: sourceURL, Err: fmt.Errorf("encode jpeg: %w", err)}
	}
	return buf.Bytes(), nil
}

func (t *Transformer) fetch(ctx context.Context, sourceURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	return body, nil
}

// flatten drops the alpha channel by compositing onto an opaque white
// canvas. JPEG carries no alpha; translucent pixels would otherwise
// come out black.
func flatten(img image.Image) image.Image {
	if isOpaque(img) {
		return img
	}
	bg := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), color.White)
	return imaging.OverlayCenter(bg, img, 1.0)
}

func isOpaque(img image.Image) bool {
	type opaquer interface{ Opaque() bool }
	if o, ok := img.(opaquer); ok {
		return o.Opaque()
	}
	return false
}

func downscale(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxDim && b.Dy() <= maxDim {
		return img
	}
	return imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
}
