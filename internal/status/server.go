package status

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/gaspardpetit/urlpusher/core/logx"
	"github.com/gaspardpetit/urlpusher/internal/agent"
)

// ErrUnavailable is returned by a control when the agent is not running.
var ErrUnavailable = errors.New("agent not running")

// Controls are the operator actions exposed under /control. A nil control is
// not routed.
type Controls struct {
	Reconnect func() error
	Reload    func() error
	Announce  func(text string, delay time.Duration) error
}

// ServerOptions configures the status server.
type ServerOptions struct {
	Board *Board
	// TokenPath enables the control endpoints; the token is created on first
	// use.
	TokenPath   string
	CORSOrigins []string
	Controls    Controls
}

// Start serves the status endpoints on addr until ctx is done and returns the
// resolved address.
func Start(ctx context.Context, addr string, opts ServerOptions) (string, error) {
	h, err := NewHandler(opts)
	if err != nil {
		return "", err
	}
	return agent.ServeUntilContext(ctx, addr, h)
}

// NewHandler builds the status router.
func NewHandler(opts ServerOptions) (http.Handler, error) {
	r := chi.NewRouter()
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "X-Auth-Token"},
		}))
	}
	b := opts.Board
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{Status: b.Status()}
		if h, err := CollectHost(r.Context()); err == nil {
			resp.Host = &h
		}
		writeJSON(w, resp)
	})
	r.Get("/version", func(w http.ResponseWriter, r *http.Request) { writeJSON(w, b.Version()) })
	r.Get("/surface", func(w http.ResponseWriter, r *http.Request) { writeJSON(w, b.Snapshot()) })
	r.Get("/surface/watch", watchHandler(b, opts.CORSOrigins))

	if strings.TrimSpace(opts.TokenPath) != "" {
		token, err := LoadOrCreateToken(opts.TokenPath)
		if err != nil {
			return nil, err
		}
		c := opts.Controls
		r.Route("/control", func(r chi.Router) {
			r.Use(requireToken(token))
			if c.Reconnect != nil {
				r.Post("/reconnect", action(c.Reconnect))
			}
			if c.Reload != nil {
				r.Post("/reload", action(c.Reload))
			}
			if c.Announce != nil {
				r.Post("/announce", announceHandler(c.Announce))
			}
		})
	}
	return r, nil
}

type statusResponse struct {
	Status
	Host *HostInfo `json:"host,omitempty"`
}

// TokenPath places the control token next to the config file.
func TokenPath(configFile, basename string) string {
	if strings.TrimSpace(configFile) == "" {
		configFile = basename + ".yaml"
	}
	return filepath.Join(filepath.Dir(configFile), basename+".token")
}

// LoadOrCreateToken reads the token at path, generating one if missing.
func LoadOrCreateToken(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		tok := strings.TrimSpace(string(b))
		if tok != "" {
			return tok, nil
		}
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	tok := hex.EncodeToString(buf)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(tok), 0o600); err != nil {
		return "", err
	}
	return tok, nil
}

func requireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, _ := net.SplitHostPort(r.RemoteAddr)
			if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			if r.Header.Get("X-Auth-Token") != token {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func action(fn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

type announceRequest struct {
	Text  string `json:"text"`
	Delay string `json:"delay,omitempty"`
}

func announceHandler(fn func(string, time.Duration) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req announceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		var delay time.Duration
		if req.Delay != "" {
			d, err := time.ParseDuration(req.Delay)
			if err != nil {
				http.Error(w, "invalid delay", http.StatusBadRequest)
				return
			}
			delay = d
		}
		if err := fn(req.Text, delay); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func watchHandler(b *Board, origins []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: origins})
		if err != nil {
			logx.Log.Debug().Err(err).Msg("surface watch accept")
			return
		}
		defer func() { _ = c.Close(websocket.StatusNormalClosure, "") }()
		ctx := c.CloseRead(r.Context())
		snaps, stop := b.Watch()
		defer stop()
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-snaps:
				data, err := json.Marshal(s)
				if err != nil {
					return
				}
				wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
				err = c.Write(wctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					return
				}
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
