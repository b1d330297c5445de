// Package writer serializes write transactions through one goroutine that
// owns the only read-write SQLite connection.
//
// Callers submit a request with Call and wait for its result. The actor
// runs each request in its own IMMEDIATE transaction, strictly one at a
// time in queue order, so the connection needs no lock and writers never
// contend with each other for the database write lock.
package writer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/msomdec/postwriter/internal/sqlite3"
)

// DefaultQueueSize is used when Config.QueueSize is not positive.
const DefaultQueueSize = 1024

// pragmas is applied to the connection before Setup runs.
const pragmas = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA foreign_keys = ON;
PRAGMA busy_timeout = 10000;
PRAGMA optimize = 0x10002;
`

var (
	// ErrClosed is returned by Call once the writer stopped accepting
	// requests.
	ErrClosed = errors.New("writer: closed")
	// ErrPanic wraps a panic raised by an operation. The transaction it
	// ran in has been rolled back.
	ErrPanic = errors.New("writer: operation panicked")
)

// State is the lifecycle stage of a Writer.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", s)
}

// Op is the work done for one request. It runs inside a transaction on
// the writer's connection; returning an error rolls the transaction back.
type Op[Req, Res any] func(c *sqlite3.Conn, req Req) (Res, error)

// Config configures a Writer.
type Config struct {
	// Path is the database file, a file: URI or ":memory:".
	Path string
	// QueueSize bounds the number of requests waiting for the actor.
	QueueSize int
	// Setup runs once after the connection is opened, typically to
	// migrate the schema. Start fails if it does.
	Setup func(c *sqlite3.Conn) error
}

// Stats is a point-in-time view of a Writer.
type Stats struct {
	QueueDepth    int
	QueueCapacity int
	Commits       uint64
	Rollbacks     uint64
	Prepares      int64
}

type result[Res any] struct {
	res Res
	err error
}

type envelope[Req, Res any] struct {
	req   Req
	reply chan result[Res]
}

// Writer is a single-writer actor. Its methods are safe for concurrent use.
type Writer[Req, Res any] struct {
	op    Op[Req, Res]
	queue chan envelope[Req, Res]
	state atomic.Int32

	// closing guards closed, stop and the close of queue against
	// concurrent sends.
	closing sync.RWMutex
	closed  bool
	stop    func() bool

	done chan struct{}
	err  error

	// conn is owned by the actor goroutine. Only its atomic prepare
	// counter is read elsewhere.
	conn *sqlite3.Conn

	commits   atomic.Uint64
	rollbacks atomic.Uint64
	duration  prometheus.Histogram
}

// Start opens the connection, applies the pragmas and cfg.Setup, and
// starts the actor. It returns once the actor is running, or with the
// startup error, in which case nothing is left running. Cancelling ctx
// has the same effect as Close.
func Start[Req, Res any](ctx context.Context, cfg Config, op Op[Req, Res]) (*Writer[Req, Res], error) {
	if op == nil {
		return nil, errors.New("writer: nil op")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}

	w := &Writer[Req, Res]{
		op:    op,
		queue: make(chan envelope[Req, Res], cfg.QueueSize),
		done:  make(chan struct{}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "postwriter",
			Subsystem: "writer",
			Name:      "transaction_duration_seconds",
			Help:      "Time spent running one request transaction, including commit or rollback.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}

	slog.Debug("writer starting", "path", cfg.Path)
	ready := make(chan error, 1)
	go w.run(cfg, ready)
	if err := <-ready; err != nil {
		return nil, err
	}

	w.closing.Lock()
	w.stop = context.AfterFunc(ctx, func() {
		if err := w.Close(); err != nil {
			slog.Error("writer shutdown failed", "error", err)
		}
	})
	w.closing.Unlock()
	return w, nil
}

func (w *Writer[Req, Res]) run(cfg Config, ready chan<- error) {
	defer close(w.done)

	conn, err := open(cfg)
	if err != nil {
		w.err = err
		w.state.Store(int32(StateClosed))
		ready <- err
		return
	}
	w.conn = conn
	w.state.Store(int32(StateRunning))
	slog.Info("writer running", "path", cfg.Path, "queue_size", cfg.QueueSize)
	ready <- nil

	for env := range w.queue {
		w.process(conn, env)
	}

	w.err = shutdown(conn)
	w.state.Store(int32(StateClosed))
	slog.Info("writer closed", "commits", w.commits.Load(), "rollbacks", w.rollbacks.Load())
}

func open(cfg Config) (*sqlite3.Conn, error) {
	conn, err := sqlite3.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open writer connection: %w", err)
	}
	if err := conn.Exec(pragmas); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if cfg.Setup != nil {
		if err := cfg.Setup(conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}
	return conn, nil
}

func shutdown(conn *sqlite3.Conn) error {
	var errs []error
	if err := conn.Exec("PRAGMA optimize;"); err != nil {
		errs = append(errs, fmt.Errorf("optimize: %w", err))
	}
	if err := conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close writer connection: %w", err))
	}
	return errors.Join(errs...)
}

func (w *Writer[Req, Res]) process(conn *sqlite3.Conn, env envelope[Req, Res]) {
	start := time.Now()
	res, err := w.transact(conn, env.req)
	w.duration.Observe(time.Since(start).Seconds())
	if err != nil {
		w.rollbacks.Add(1)
	} else {
		w.commits.Add(1)
	}
	// reply has capacity 1 and this is its only send, so it never blocks
	// even when the caller has gone away.
	env.reply <- result[Res]{res: res, err: err}
}

func (w *Writer[Req, Res]) transact(conn *sqlite3.Conn, req Req) (res Res, err error) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("writer operation panicked", "panic", p, "stack", string(debug.Stack()))
			var zero Res
			res, err = zero, fmt.Errorf("%w: %v", ErrPanic, p)
		}
	}()
	err = conn.Transact(sqlite3.Immediate, func(c *sqlite3.Conn) error {
		var opErr error
		res, opErr = w.op(c, req)
		return opErr
	})
	if err != nil {
		var zero Res
		return zero, err
	}
	return res, nil
}

// Call submits req and waits for its result. It blocks while the queue is
// full. If ctx ends first Call returns ctx.Err(), but a request that was
// already queued still runs to completion. Once the writer is closing
// Call returns ErrClosed.
func (w *Writer[Req, Res]) Call(ctx context.Context, req Req) (Res, error) {
	var zero Res
	reply := make(chan result[Res], 1)
	if err := w.enqueue(ctx, envelope[Req, Res]{req: req, reply: reply}); err != nil {
		return zero, err
	}

	select {
	case r := <-reply:
		return r.res, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-w.done:
		select {
		case r := <-reply:
			return r.res, r.err
		default:
			return zero, ErrClosed
		}
	}
}

func (w *Writer[Req, Res]) enqueue(ctx context.Context, env envelope[Req, Res]) error {
	w.closing.RLock()
	defer w.closing.RUnlock()
	if w.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case w.queue <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting requests, waits for every queued request to be
// processed and closes the connection. It returns the shutdown error.
// Calling Close more than once is safe.
func (w *Writer[Req, Res]) Close() error {
	w.closing.Lock()
	if !w.closed {
		w.closed = true
		w.state.CompareAndSwap(int32(StateRunning), int32(StateDraining))
		slog.Info("writer draining", "queued", len(w.queue))
		close(w.queue)
		if w.stop != nil {
			w.stop()
		}
	}
	w.closing.Unlock()
	return w.Wait()
}

// Wait blocks until the actor has stopped and returns the shutdown error.
func (w *Writer[Req, Res]) Wait() error {
	<-w.done
	return w.err
}

// Done is closed once the actor has stopped.
func (w *Writer[Req, Res]) Done() <-chan struct{} { return w.done }

func (w *Writer[Req, Res]) State() State { return State(w.state.Load()) }

func (w *Writer[Req, Res]) Stats() Stats {
	return Stats{
		QueueDepth:    len(w.queue),
		QueueCapacity: cap(w.queue),
		Commits:       w.commits.Load(),
		Rollbacks:     w.rollbacks.Load(),
		Prepares:      w.conn.PrepareCount(),
	}
}
