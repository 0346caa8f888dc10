package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	runtimedebug "runtime/debug"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
)

const (
	replyHandling = "Handling request"
	replyInvalid  = "Invalid request"
)

// Receiver is the HTTP server the device pushes single characteristic
// changes to: GET /<characteristic>?value=<v>. Every request gets a 200; the
// update is queued only after the acknowledgement has been flushed, so the
// device never sees what the store does with it.
type Receiver struct {
	port   int
	sink   UpdateSink
	ctx    context.Context
	logger *slog.Logger
}

func NewReceiver(port int, sink UpdateSink, logger *slog.Logger) *Receiver {
	return &Receiver{port: port, sink: sink, ctx: context.Background(), logger: logger}
}

func (rc *Receiver) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(rc.recoverer)

	r.Get("/{characteristic}", rc.handlePush)
	r.NotFound(rc.handleInvalid)
	r.MethodNotAllowed(rc.handleInvalid)

	return r
}

// recoverer logs a handler panic and still answers 200, with replyInvalid
// unless a reply already went out.
func (rc *Receiver) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			p := recover()
			if p == nil {
				return
			}
			if p == http.ErrAbortHandler {
				panic(p)
			}

			rc.logger.Error("Panic handling request.", "url", r.URL.String(), "panic", p, "stack", string(runtimedebug.Stack()))

			if ww.Status() == 0 {
				io.WriteString(ww, replyInvalid)
			}
		}()

		next.ServeHTTP(ww, r)
	})
}

func (rc *Receiver) handlePush(w http.ResponseWriter, r *http.Request) {
	c, err := ParseCharacteristic(chi.URLParam(r, "characteristic"))
	if err != nil {
		rc.handleInvalid(w, r)
		return
	}

	rc.logger.Debug("Handling request.", "characteristic", c, "remote", r.RemoteAddr)

	io.WriteString(w, replyHandling)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	u := Update{Characteristic: c, Value: r.URL.Query().Get("value")}
	if err := rc.sink.Submit(rc.ctx, u); err != nil {
		rc.logger.Debug("Dropped push update.", "characteristic", c, "err", err)
	}
}

func (rc *Receiver) handleInvalid(w http.ResponseWriter, r *http.Request) {
	rc.logger.Warn("Invalid request.", "method", r.Method, "url", r.URL.String(), "remote", r.RemoteAddr)
	io.WriteString(w, replyInvalid)
}

// ListenAndServe blocks until ctx is done or the listener fails.
func (rc *Receiver) ListenAndServe(ctx context.Context) error {
	rc.ctx = ctx

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", rc.port))
	if err != nil {
		return fmt.Errorf("push receiver listen: %w", err)
	}

	return rc.Serve(ctx, ln)
}

func (rc *Receiver) Serve(ctx context.Context, ln net.Listener) error {
	rc.ctx = ctx

	srv := &http.Server{
		Handler:           rc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			rc.logger.Error("Failed to shut down push receiver.", "err", err)
		}
	}()

	rc.logger.Info("Listening for device push updates.", "addr", ln.Addr().String())

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("push receiver: %w", err)
	}

	return nil
}
