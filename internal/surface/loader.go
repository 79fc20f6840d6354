package surface

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"
)

// Loader makes content ready in a slot. Load blocks until the content is
// ready or failed; cancelling ctx abandons the load.
type Loader interface {
	Load(ctx context.Context, class Class, ref string) error
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, class Class, ref string) error

func (f LoaderFunc) Load(ctx context.Context, class Class, ref string) error {
	return f(ctx, class, ref)
}

// NopLoader reports every load as complete at once, leaving the fetch to the
// renderer.
type NopLoader struct{}

func (NopLoader) Load(ctx context.Context, class Class, ref string) error { return ctx.Err() }

// WithTimeout bounds every load of l by d. A zero d returns l unchanged.
func WithTimeout(l Loader, d time.Duration) Loader {
	if d <= 0 {
		return l
	}
	return LoaderFunc(func(ctx context.Context, class Class, ref string) error {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return l.Load(ctx, class, ref)
	})
}

const defaultMaxBytes = 32 << 20

// HTTPLoader prefetches content. Documents must answer 2xx; images must also
// decode as a supported image format.
type HTTPLoader struct {
	Client   *http.Client
	MaxBytes int64
}

func (l HTTPLoader) Load(ctx context.Context, class Class, ref string) error {
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	limit := l.MaxBytes
	if limit <= 0 {
		limit = defaultMaxBytes
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return fmt.Errorf("load %s: %w", ref, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("load %s: %w", ref, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("load %s: status %d", ref, resp.StatusCode)
	}
	body := io.LimitReader(resp.Body, limit)
	if class == ClassImage {
		if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") && !strings.HasPrefix(ct, "application/octet-stream") {
			return fmt.Errorf("load %s: content type %q is not an image", ref, ct)
		}
		if _, _, err := image.DecodeConfig(body); err != nil {
			return fmt.Errorf("load %s: %w", ref, err)
		}
		return nil
	}
	if _, err := io.Copy(io.Discard, body); err != nil {
		return fmt.Errorf("load %s: %w", ref, err)
	}
	return nil
}

// NewLoader returns the loader registered under name: "http" or "none".
func NewLoader(name string, client *http.Client) (Loader, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "http":
		return HTTPLoader{Client: client}, nil
	case "none":
		return NopLoader{}, nil
	default:
		return nil, fmt.Errorf("unknown loader %q (want http or none)", name)
	}
}
