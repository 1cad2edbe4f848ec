package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Store is the field client's durable local store. It opens lazily: New
// returns immediately, Start opens and migrates the database in the
// background, and readiness is signalled once through the OnReady callback
// and the Ready channel. Operations issued before readiness fail with
// ErrNotReady.
type Store struct {
	path   string
	logger *zap.Logger

	startOnce sync.Once
	ready     chan struct{}

	mu        sync.RWMutex
	db        *DB
	initErr   error
	migration *MigrateResult
	closed    bool
	opened    bool
	onReady   func(error)
	inflight  sync.WaitGroup
}

// New returns a store for the database file at path. Nothing is opened until Start.
func New(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:   path,
		logger: logger,
		ready:  make(chan struct{}),
	}
}

// Start begins opening the store in the background. Calling it again is a no-op.
func (s *Store) Start() {
	s.startOnce.Do(func() {
		go s.open()
	})
}

func (s *Store) open() {
	started := time.Now()
	var (
		db  *DB
		res *MigrateResult
		err error
	)
	if err = os.MkdirAll(filepath.Dir(s.path), 0700); err == nil {
		db, err = Open(s.path)
	}
	if err == nil {
		res, err = db.Migrate()
		if err != nil {
			_ = db.Close()
			db = nil
		}
	}

	s.mu.Lock()
	if s.closed && db != nil {
		_ = db.Close()
		db = nil
		err = ErrClosed
	}
	s.db = db
	s.initErr = err
	s.migration = res
	s.opened = true
	cb := s.onReady
	s.onReady = nil
	s.mu.Unlock()
	close(s.ready)

	if err != nil {
		s.logger.Error("local store failed to open", zap.String("path", s.path), zap.Error(err))
	} else {
		s.logger.Info("local store ready",
			zap.String("path", s.path),
			zap.Uint("schema_version", res.Version),
			zap.Bool("migrated", res.Changed),
			zap.Duration("took", time.Since(started)),
		)
	}
	if cb != nil {
		cb(err)
	}
}

// OnReady sets the readiness callback. It replaces any earlier callback and
// runs immediately if the store has already finished opening. Either way it
// runs once.
func (s *Store) OnReady(fn func(err error)) {
	s.mu.Lock()
	if !s.opened {
		s.onReady = fn
		s.mu.Unlock()
		return
	}
	err := s.initErr
	s.mu.Unlock()
	fn(err)
}

// Ready is closed once the store has opened or failed to open.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Err returns the error that prevented the store from opening, if any.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initErr
}

// Migration returns the migration outcome, or nil before readiness.
func (s *Store) Migration() *MigrateResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.migration
}

// Close waits for in-flight operations and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	db := s.db
	s.mu.Unlock()

	s.inflight.Wait()
	if db != nil {
		return db.Close()
	}
	return nil
}

// acquire returns the open database and registers an in-flight operation.
func (s *Store) acquire() (*DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.closed:
		return nil, ErrClosed
	case s.initErr != nil:
		return nil, fmt.Errorf("%w: %v", ErrNotReady, s.initErr)
	case s.db == nil:
		return nil, ErrNotReady
	}
	s.inflight.Add(1)
	return s.db, nil
}

// run executes fn against the database on its own goroutine. Each call is an
// independent statement; there is no batching across calls.
func run[T any](s *Store, op string, c Collection, fn func(db *DB) (T, error)) *Pending[T] {
	db, err := s.acquire()
	if err != nil {
		return rejected[T](wrapErr(op, c, err))
	}
	p := newPending[T]()
	go func() {
		defer s.inflight.Done()
		v, err := fn(db)
		if err != nil {
			s.logger.Warn("store operation failed",
				zap.String("op", op),
				zap.String("collection", string(c)),
				zap.Error(err),
			)
		}
		p.resolve(v, wrapErr(op, c, err))
	}()
	return p
}

func checked[T any](op string, c Collection) *Pending[T] {
	if c.Valid() {
		return nil
	}
	return rejected[T](wrapErr(op, c, ErrUnknownCollection))
}

// Put inserts r into c. A duplicate id fails with the engine's constraint code.
func (s *Store) Put(ctx context.Context, c Collection, r Record) *Pending[struct{}] {
	if p := checked[struct{}]("put", c); p != nil {
		return p
	}
	if r.ID == "" {
		return rejected[struct{}](wrapErr("put", c, fmt.Errorf("record id is required")))
	}
	return run(s, "put", c, func(db *DB) (struct{}, error) {
		_, err := db.ExecContext(ctx,
			`INSERT INTO `+string(c)+` (id, data, created_at) VALUES (?, ?, ?)`,
			r.ID, string(r.Data), time.Now().UnixMilli())
		return struct{}{}, err
	})
}

// GetAll returns every record in c in insertion order.
func (s *Store) GetAll(ctx context.Context, c Collection) *Pending[[]Record] {
	if p := checked[[]Record]("get_all", c); p != nil {
		return p
	}
	return run(s, "get_all", c, func(db *DB) ([]Record, error) {
		rows, err := db.QueryContext(ctx, `SELECT id, data FROM `+string(c)+` ORDER BY seq ASC`)
		if err != nil {
			return nil, err
		}
		defer func() { _ = rows.Close() }()

		var out []Record
		for rows.Next() {
			var (
				r    Record
				data string
			)
			if err := rows.Scan(&r.ID, &data); err != nil {
				return nil, err
			}
			r.Data = []byte(data)
			out = append(out, r)
		}
		return out, rows.Err()
	})
}

// Clear removes every record from c and reports how many were removed.
func (s *Store) Clear(ctx context.Context, c Collection) *Pending[int64] {
	if p := checked[int64]("clear", c); p != nil {
		return p
	}
	return run(s, "clear", c, func(db *DB) (int64, error) {
		res, err := db.ExecContext(ctx, `DELETE FROM `+string(c))
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	})
}

// Delete removes one record and reports whether it existed.
func (s *Store) Delete(ctx context.Context, c Collection, id string) *Pending[bool] {
	if p := checked[bool]("delete", c); p != nil {
		return p
	}
	return run(s, "delete", c, func(db *DB) (bool, error) {
		res, err := db.ExecContext(ctx, `DELETE FROM `+string(c)+` WHERE id = ?`, id)
		if err != nil {
			return false, err
		}
		n, err := res.RowsAffected()
		return n > 0, err
	})
}

// Count returns the number of records in c.
func (s *Store) Count(ctx context.Context, c Collection) *Pending[int] {
	if p := checked[int]("count", c); p != nil {
		return p
	}
	return run(s, "count", c, func(db *DB) (int, error) {
		var n int
		err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+string(c)).Scan(&n)
		return n, err
	})
}
