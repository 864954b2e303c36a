// Package host serves registered scripts over HTTP. It runs a fixed set of
// workers, pins every accepted connection to one of them, and routes each
// request to the runtime context the worker holds for the matching route.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cryguy/jshandler"
	"github.com/cryguy/jshandler/internal/logging"
	"github.com/google/uuid"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"
)

// RequestIDHeader carries the request id. An incoming value is kept,
// otherwise a new UUID is assigned.
const RequestIDHeader = "X-Request-Id"

// Options configures a Server.
type Options struct {
	Workers         int
	MaxConnections  int  // 0 is unlimited
	H2C             bool // accept HTTP/2 without TLS
	ShutdownTimeout time.Duration

	Compression        bool
	CompressionMinSize int
}

// Server is the HTTP host for a set of registrations.
type Server struct {
	opts    Options
	handler *jshandler.Handler
	regs    []*jshandler.Registration
	router  *router
	logger  *slog.Logger

	workers []*worker
	next    atomic.Uint64
	quit    chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	running   atomic.Bool
}

type workerKey struct{}

// New creates a server. Workers are started by Start or Serve.
func New(opts Options, h *jshandler.Handler, regs []*jshandler.Registration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{
		opts:    opts,
		handler: h,
		regs:    regs,
		router:  newRouter(regs),
		logger:  logger,
		quit:    make(chan struct{}),
	}
	for i := 0; i < opts.Workers; i++ {
		s.workers = append(s.workers, newWorker(i, h, regs, s.quit, logger))
	}
	return s
}

// Start launches the workers and waits until each has built its runtime
// contexts. Scripts that fail to load are logged by the handler and leave
// their route answering 500; they do not fail Start.
func (s *Server) Start(ctx context.Context) error {
	var err error
	s.startOnce.Do(func() {
		s.running.Store(true)
		g, gctx := errgroup.WithContext(ctx)
		for _, w := range s.workers {
			go w.run()
			g.Go(func() error {
				select {
				case <-w.started:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}
		err = g.Wait()
		if err == nil {
			s.logger.Info("workers started", "workers", len(s.workers), "routes", len(s.regs), "engine", s.handler.Backend())
		}
	})
	return err
}

// Stop stops the workers, which closes every runtime context, then
// unregisters the routes. It must be called after the HTTP server has
// drained; requests still waiting get 503.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		if s.running.Load() {
			for _, w := range s.workers {
				<-w.done
			}
		}
		for _, reg := range s.regs {
			s.handler.OnUnregister(reg)
		}
		s.logger.Info("workers stopped")
	})
}

// Serve starts the workers and serves HTTP on ln until ctx is cancelled,
// then shuts down gracefully: in-flight requests finish, workers stop,
// routes are unregistered.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer s.Stop()

	if s.opts.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.opts.MaxConnections)
	}

	var h http.Handler = s
	if s.opts.H2C {
		h = h2c.NewHandler(h, &http2.Server{})
	}
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ConnContext: func(ctx context.Context, _ net.Conn) context.Context {
			return context.WithValue(ctx, workerKey{}, s.pickWorker())
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", "addr", ln.Addr().String(), "h2c", s.opts.H2C)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// pickWorker assigns workers round-robin.
func (s *Server) pickWorker() *worker {
	n := s.next.Add(1) - 1
	return s.workers[n%uint64(len(s.workers))]
}

// ServeHTTP routes r to the worker owning its connection. Requests that did
// not come through Serve are assigned a worker round-robin.
func (s *Server) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := r.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
		r.Header.Set(RequestIDHeader, id)
	}
	rw.Header().Set(RequestIDHeader, id)

	reg := s.router.match(r.URL.Path)
	if reg == nil {
		http.NotFound(rw, r)
		return
	}

	w, ok := r.Context().Value(workerKey{}).(*worker)
	if !ok {
		w = s.pickWorker()
	}

	resp, ok := s.dispatch(r, w, reg)
	if !ok {
		return
	}
	s.writeResponse(rw, r, resp)
	s.logger.Debug("request served",
		"request_id", id,
		"worker", w.id,
		"method", r.Method,
		"path", r.URL.Path,
		"route", reg.Route(),
		"status", resp.Status,
		"duration", time.Since(start))
}

// dispatch queues the request on w and waits for its response. A client
// that goes away stops the wait; the worker still finishes the run.
func (s *Server) dispatch(r *http.Request, w *worker, reg *jshandler.Registration) (jshandler.Response, bool) {
	j := job{reg: reg, req: r, reply: make(chan jshandler.Response, 1)}
	select {
	case w.jobs <- j:
	case <-w.done:
		return unavailable(), true
	case <-r.Context().Done():
		return jshandler.Response{}, false
	}
	select {
	case resp := <-j.reply:
		return resp, true
	case <-w.done:
		return unavailable(), true
	case <-r.Context().Done():
		return jshandler.Response{}, false
	}
}

func unavailable() jshandler.Response {
	return jshandler.Response{
		Status:     http.StatusServiceUnavailable,
		StatusText: http.StatusText(http.StatusServiceUnavailable),
		Body:       http.StatusText(http.StatusServiceUnavailable),
	}
}

func (s *Server) writeResponse(rw http.ResponseWriter, r *http.Request, resp jshandler.Response) {
	body := []byte(resp.Body)
	h := rw.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")

	if s.opts.Compression && len(body) >= s.opts.CompressionMinSize && len(body) > 0 {
		h.Add("Vary", "Accept-Encoding")
		if enc := negotiateEncoding(r.Header.Get("Accept-Encoding")); enc != "" {
			if out, err := compressBody(enc, body); err != nil {
				s.logger.Warn("compressing response", "encoding", enc, "error", err)
			} else {
				h.Set("Content-Encoding", enc)
				body = out
			}
		}
	}
	h.Set("Content-Length", strconv.Itoa(len(body)))
	rw.WriteHeader(resp.Status)
	if r.Method != http.MethodHead {
		_, _ = rw.Write(body)
	}
}
