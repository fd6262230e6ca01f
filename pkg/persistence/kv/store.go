// Package kv implements persistence on an embedded, ordered key-value file
// (bbolt). Every read and write runs inside a transaction scoped to the call.
package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/taskflow/pkg/otelhelper"
	"github.com/dukex/taskflow/pkg/persistence"
	bolt "go.etcd.io/bbolt"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dukex/taskflow/pkg/persistence/kv"

// Store wraps a bbolt database.
type Store struct {
	db     *bolt.DB
	path   string
	retry  RetryPolicy
	logger *slog.Logger
	tracer trace.Tracer
}

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	openTimeout time.Duration
	retry       RetryPolicy
	logger      *slog.Logger
	tracer      trace.Tracer
}

// WithOpenTimeout bounds how long Open waits for the file lock.
func WithOpenTimeout(d time.Duration) Option {
	return func(o *storeOptions) { o.openTimeout = d }
}

// WithRetryPolicy replaces DefaultRetryPolicy for WriteWithRetry.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(o *storeOptions) { o.retry = policy }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *storeOptions) { o.logger = logger }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *storeOptions) { o.tracer = tracer }
}

// Open opens (creating if needed) the store file and its buckets.
func Open(path string, opts ...Option) (*Store, error) {
	options := storeOptions{
		openTimeout: time.Second,
		retry:       DefaultRetryPolicy(),
		logger:      slog.Default(),
		tracer:      otelhelper.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(&options)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: options.openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}

		return nil
	})
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	return &Store{
		db:     db,
		path:   path,
		retry:  options.retry,
		logger: options.logger.With("module", "kv_store"),
		tracer: options.tracer,
	}, nil
}

// Path returns the store file path.
func (s *Store) Path() string {
	return s.path
}

// Close releases the store file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Read runs fn inside a read-only transaction.
func (s *Store) Read(ctx context.Context, fn func(tx *bolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.View(fn)
}

// Write runs fn inside a read-write transaction. The transaction commits iff
// fn returns nil.
func (s *Store) Write(ctx context.Context, fn func(tx *bolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(fn)
}

// WriteWithRetry runs fn through Write under the store's retry policy.
// Serialization, validation and not-found errors are returned immediately;
// anything else is retried and the last error is surfaced.
func (s *Store) WriteWithRetry(ctx context.Context, op string, fn func(tx *bolt.Tx) error) error {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "kv.write", attribute.String(otelhelper.StoreOpKey, op))
	defer span.End()

	attempts := 0
	_, err := Retry(ctx, func() (struct{}, error) {
		attempts++

		err := s.Write(ctx, fn)
		if err != nil && !retryable(err) {
			return struct{}{}, Permanent(err)
		}

		return struct{}{}, err
	}, s.retry.MaxAttempts, s.retry.Backoff, func(err error, delay time.Duration) {
		s.logger.WarnContext(ctx, "Store write failed, retrying",
			"op", op,
			"attempt", attempts,
			"delay", delay,
			"error", err,
		)
	})

	span.SetAttributes(attribute.Int("taskflow.store.attempts", attempts))

	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	return nil
}

func retryable(err error) bool {
	switch {
	case persistence.IsSerialization(err),
		persistence.IsNotFound(err),
		errors.Is(err, persistence.ErrInvalidRecord),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, bolt.ErrDatabaseNotOpen),
		errors.Is(err, bolt.ErrTxNotWritable):
		return false
	default:
		return true
	}
}

func bucket(tx *bolt.Tx, name string) *bolt.Bucket {
	return tx.Bucket([]byte(name))
}

// scanPrefix calls fn for every key in b starting with prefix, in key order.
func scanPrefix(b *bolt.Bucket, prefix []byte, fn func(key, value []byte) error) error {
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
		if err := fn(k, v); err != nil {
			return err
		}
	}

	return nil
}

// keysWithPrefix collects matching keys so they can be deleted outside the
// cursor walk.
func keysWithPrefix(b *bolt.Bucket, prefix []byte) [][]byte {
	var keys [][]byte
	_ = scanPrefix(b, prefix, func(k, _ []byte) error {
		keys = append(keys, append([]byte(nil), k...))

		return nil
	})

	return keys
}

func hasPrefix(key, prefix []byte) bool {
	return len(key) >= len(prefix) && string(key[:len(prefix)]) == string(prefix)
}
