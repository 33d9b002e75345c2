package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/valter-silva-au/taskdeck/pkg/models"
)

// Operation classifies a gateway call for latency accounting.
type Operation string

const (
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

type operationKey struct{}

// WithOperation tags ctx so the next Save is charged the latency of op.
// Untagged saves are charged as updates.
func WithOperation(ctx context.Context, op Operation) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

func operationFrom(ctx context.Context) Operation {
	if op, ok := ctx.Value(operationKey{}).(Operation); ok {
		return op
	}
	return OpUpdate
}

// Latency holds the simulated delay per operation.
type Latency struct {
	Read   time.Duration
	Create time.Duration
	Update time.Duration
	Delete time.Duration
}

// DefaultLatency mirrors the delays of the hosted API the client was built
// against.
func DefaultLatency() Latency {
	return Latency{
		Read:   300 * time.Millisecond,
		Create: 500 * time.Millisecond,
		Update: 400 * time.Millisecond,
		Delete: 600 * time.Millisecond,
	}
}

// For returns the delay charged for op.
func (l Latency) For(op Operation) time.Duration {
	switch op {
	case OpRead:
		return l.Read
	case OpCreate:
		return l.Create
	case OpDelete:
		return l.Delete
	default:
		return l.Update
	}
}

// ErrInjectedFailure is the cause recorded for simulated faults.
var ErrInjectedFailure = errors.New("simulated storage failure")

// PersistenceError reports a failed gateway call.
type PersistenceError struct {
	Op      Operation
	OwnerID string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage %s for owner %s: %v", e.Op, e.OwnerID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// GatewayOptions configures a Gateway. The zero value means no latency, no
// faults and no seeding.
type GatewayOptions struct {
	Latency     Latency
	FailureRate float64
	Seed        bool
	Now         func() time.Time
	Logger      *slog.Logger
	// Rand returns a value in [0,1) used for fault injection.
	Rand func() float64
}

// Gateway loads and saves whole task collections per owner on top of a
// KVStore, adding latency, fault injection and the seed fallback.
type Gateway struct {
	kv   KVStore
	opts GatewayOptions

	mu       sync.Mutex
	failNext int
}

// NewGateway creates a Gateway over kv.
func NewGateway(kv KVStore, opts GatewayOptions) *Gateway {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}
	return &Gateway{kv: kv, opts: opts}
}

// TaskKey is the storage key of an owner's collection.
func TaskKey(ownerID string) string {
	return "taskdeck:tasks:" + ownerID
}

// FailNext makes the next n gateway calls fail with ErrInjectedFailure.
func (g *Gateway) FailNext(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failNext = n
}

// Load returns the owner's collection. A missing or corrupt value is not an
// error: the default collection (or an empty one when seeding is off) is
// returned instead.
func (g *Gateway) Load(ctx context.Context, ownerID string) ([]models.Task, error) {
	if err := g.begin(ctx, OpRead, ownerID); err != nil {
		return nil, err
	}

	data, found, err := g.kv.Get(ctx, TaskKey(ownerID))
	if err != nil {
		return nil, &PersistenceError{Op: OpRead, OwnerID: ownerID, Err: err}
	}
	if !found {
		return g.fallback(ctx, ownerID), nil
	}

	tasks, err := DecodeTasks(data)
	if err != nil {
		g.opts.Logger.Warn("stored task collection unreadable, using defaults",
			"owner", ownerID, "error", err)
		return g.fallback(ctx, ownerID), nil
	}
	return tasks, nil
}

// Save replaces the owner's collection. The operation recorded on ctx by
// WithOperation selects the simulated latency.
func (g *Gateway) Save(ctx context.Context, ownerID string, tasks []models.Task) error {
	op := operationFrom(ctx)
	if err := g.begin(ctx, op, ownerID); err != nil {
		return err
	}

	data, err := EncodeTasks(tasks)
	if err != nil {
		return &PersistenceError{Op: op, OwnerID: ownerID, Err: err}
	}
	if err := g.kv.Set(ctx, TaskKey(ownerID), data); err != nil {
		return &PersistenceError{Op: op, OwnerID: ownerID, Err: err}
	}
	return nil
}

// Close releases the underlying store.
func (g *Gateway) Close() error {
	return g.kv.Close()
}

// fallback returns the collection for an owner with nothing readable stored.
// A seeded collection is written back so its ids survive the next load.
func (g *Gateway) fallback(ctx context.Context, ownerID string) []models.Task {
	if !g.opts.Seed {
		return []models.Task{}
	}
	tasks := DefaultCollection(ownerID, g.opts.Now())
	data, err := EncodeTasks(tasks)
	if err == nil {
		err = g.kv.Set(ctx, TaskKey(ownerID), data)
	}
	if err != nil {
		g.opts.Logger.Warn("storing default collection", "owner", ownerID, "error", err)
	}
	return tasks
}

// begin waits out the simulated latency and then decides whether the call
// fails. A cancelled context aborts the wait.
func (g *Gateway) begin(ctx context.Context, op Operation, ownerID string) error {
	if d := g.opts.Latency.For(op); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return &PersistenceError{Op: op, OwnerID: ownerID, Err: ctx.Err()}
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return &PersistenceError{Op: op, OwnerID: ownerID, Err: err}
	}

	if g.shouldFail() {
		g.opts.Logger.Debug("injecting storage failure", "op", string(op), "owner", ownerID)
		return &PersistenceError{Op: op, OwnerID: ownerID, Err: ErrInjectedFailure}
	}
	return nil
}

func (g *Gateway) shouldFail() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failNext > 0 {
		g.failNext--
		return true
	}
	return g.opts.FailureRate > 0 && g.opts.Rand() < g.opts.FailureRate
}
