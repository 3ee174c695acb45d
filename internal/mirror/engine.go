// Package mirror maintains the app-owned copy of the Messages database.
// It lifts raw rows out of chat.db, normalizes the identity and text
// signals the detection layer depends on, and ingests them idempotently
// into the store.
package mirror

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/mpontes/nudge/internal/bus"
	"github.com/mpontes/nudge/internal/richtext"
	"github.com/mpontes/nudge/internal/status"
	"github.com/mpontes/nudge/internal/store"
)

// checkpointKey is where the highest mirrored source ROWID is kept.
const checkpointKey = "mirror.rowid"

const batchSize = 500

// Engine runs mirror passes from the source chat.db into the store.
type Engine struct {
	db         *store.DB
	bus        *bus.Bus
	machine    *status.Machine
	logger     *zap.Logger
	sourcePath string
	poll       time.Duration

	kick   chan struct{}
	cancel context.CancelFunc
}

// PassResult summarizes one mirror pass.
type PassResult struct {
	Rows      int
	Skipped   int
	Decoded   int // bodies recovered from attributedBody
	Watermark int64
}

// NewEngine creates a mirror engine reading from sourcePath.
func NewEngine(db *store.DB, b *bus.Bus, machine *status.Machine, logger *zap.Logger, sourcePath string, poll time.Duration) *Engine {
	return &Engine{
		db:         db,
		bus:        b,
		machine:    machine,
		logger:     logger,
		sourcePath: sourcePath,
		poll:       poll,
		kick:       make(chan struct{}, 1),
	}
}

// Start launches the mirror loop: an immediate pass, then a pass on every
// poll tick and whenever the source file changes.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		e.logger.Warn("source watcher unavailable, polling only", zap.Error(err))
		watcher = nil
	} else {
		// Watch the directory: sqlite writes land in chat.db-wal, and the
		// main file may be replaced wholesale.
		if err := watcher.Add(filepath.Dir(e.sourcePath)); err != nil {
			e.logger.Warn("cannot watch source dir, polling only", zap.Error(err))
			_ = watcher.Close()
			watcher = nil
		}
	}

	go e.loop(ctx, watcher)
}

// Stop stops the mirror loop.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

// Kick requests an extra pass outside the schedule.
func (e *Engine) Kick() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

func (e *Engine) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	if watcher != nil {
		defer func() { _ = watcher.Close() }()
	}

	ticker := time.NewTicker(e.poll)
	defer ticker.Stop()

	// Debounce bursts of filesystem events into one pass.
	var pending <-chan time.Time

	e.pass(ctx)

	for {
		var events chan fsnotify.Event
		var errs chan error
		if watcher != nil {
			events = watcher.Events
			errs = watcher.Errors
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.pass(ctx)
		case <-e.kick:
			e.pass(ctx)
		case evt := <-events:
			if filepath.Base(evt.Name) == filepath.Base(e.sourcePath) ||
				filepath.Base(evt.Name) == filepath.Base(e.sourcePath)+"-wal" {
				if pending == nil {
					pending = time.After(500 * time.Millisecond)
				}
			}
		case <-pending:
			pending = nil
			e.pass(ctx)
		case err := <-errs:
			e.logger.Warn("source watcher error", zap.Error(err))
		}
	}
}

func (e *Engine) pass(ctx context.Context) {
	_ = e.machine.Transition(status.Syncing)
	result, err := e.RunPass(ctx)
	if err != nil {
		e.logger.Error("mirror pass failed", zap.Error(err))
		_ = e.machine.Transition(status.Degraded)
		e.bus.Publish(bus.Now(bus.KindMirrorFailed, err.Error()))
		return
	}
	_ = e.machine.Transition(status.Ready)
	if result.Rows > 0 {
		e.logger.Info("mirror pass complete",
			zap.Int("rows", result.Rows),
			zap.Int("skipped", result.Skipped),
			zap.Int("decoded", result.Decoded),
			zap.Int64("watermark", result.Watermark))
	}
}

// RunPass mirrors every source row past the current watermark. The source
// is opened per pass so a replaced chat.db is picked up cleanly.
func (e *Engine) RunPass(ctx context.Context) (*PassResult, error) {
	src, err := OpenSource(e.sourcePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()

	watermark, err := e.watermark()
	if err != nil {
		return nil, err
	}

	result := &PassResult{Watermark: watermark}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rows, err := src.ReadAfter(result.Watermark, batchSize)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			break
		}

		batch := make([]*store.Message, 0, len(rows))
		for _, r := range rows {
			m, ok := e.convert(r)
			if !ok {
				result.Skipped++
				continue
			}
			if !r.Text.Valid && m.Text.Valid {
				result.Decoded++
			}
			batch = append(batch, m)
		}
		if len(batch) > 0 {
			if _, err := e.db.AppendBatch(batch); err != nil {
				return nil, err
			}
		}

		result.Rows += len(batch)
		result.Watermark = rows[len(rows)-1].RowID
		if err := e.db.SetCheckpoint(checkpointKey, strconv.FormatInt(result.Watermark, 10)); err != nil {
			return nil, err
		}
	}

	if result.Rows > 0 {
		e.bus.Publish(bus.Now(bus.KindMirrorBatch, result.Rows))
	}
	return result, nil
}

// convert normalizes a source row into the mirror's model. Rows that can
// be attributed to no handle and no group signal are unthreadable and get
// skipped.
func (e *Engine) convert(r Row) (*store.Message, bool) {
	contact := r.HandleID.String
	if contact == "" && !r.ChatIdentifier.Valid && !r.CacheRoomnames.Valid && !r.GroupTitle.Valid {
		return nil, false
	}

	text := r.Text
	if !text.Valid && len(r.AttributedBody) > 0 {
		if decoded, ok := richtext.Decode(r.AttributedBody); ok {
			text = sql.NullString{String: decoded, Valid: true}
		}
	}

	return &store.Message{
		Contact:     contact,
		Text:        text,
		RawTS:       r.Date,
		FromMe:      r.IsFromMe,
		ChatID:      r.ChatIdentifier,
		RoomName:    r.CacheRoomnames,
		GroupTitle:  r.GroupTitle,
		SourceRowID: sql.NullInt64{Int64: r.RowID, Valid: true},
	}, true
}

func (e *Engine) watermark() (int64, error) {
	v, err := e.db.GetCheckpoint(checkpointKey)
	if err != nil {
		return 0, err
	}
	if v == "" {
		return 0, nil
	}
	w, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt mirror watermark %q: %w", v, err)
	}
	return w, nil
}
