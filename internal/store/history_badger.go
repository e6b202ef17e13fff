package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/GregMSThompson/agent-bridge/internal/errs"
	"github.com/GregMSThompson/agent-bridge/internal/models"
)

// Key layout
// msg/{owner}/{sessionID}/{createdAt unix nanos, zero padded}/{messageID}
//
// Owner and session are path-escaped so a "/" inside them cannot move a key
// into another session's range.

type BadgerConfig struct {
	Path       string
	InMemory   bool
	Logger     *slog.Logger
	GCInterval time.Duration
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

type BadgerHistory struct {
	db     *badger.DB
	log    *slog.Logger
	stopGC chan struct{}
	gcDone chan struct{}
}

func OpenBadgerHistory(cfg BadgerConfig) (*BadgerHistory, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent history")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create history directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger history: %w", err)
	}

	h := &BadgerHistory{db: db, log: cfg.Logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		h.stopGC = make(chan struct{})
		h.gcDone = make(chan struct{})
		go h.runGC(cfg.GCInterval)
	}
	return h, nil
}

func (h *BadgerHistory) runGC(interval time.Duration) {
	defer close(h.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopGC:
			return
		case <-ticker.C:
			if err := h.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) && h.log != nil {
				h.log.Warn("badger value log GC error", "error", err)
			}
		}
	}
}

func (h *BadgerHistory) Close() error {
	if h.stopGC != nil {
		close(h.stopGC)
		<-h.gcDone
	}
	return h.db.Close()
}

func sessionPrefix(owner, sessionID string) []byte {
	return []byte(fmt.Sprintf("msg/%s/%s/", url.PathEscape(owner), url.PathEscape(sessionID)))
}

func messageKey(owner, sessionID string, msg models.Message) []byte {
	return append(sessionPrefix(owner, sessionID), fmt.Sprintf("%020d/%s", msg.CreatedAt.UnixNano(), msg.ID)...)
}

func (h *BadgerHistory) Append(ctx context.Context, owner, sessionID string, msgs ...models.Message) error {
	err := h.db.Update(func(txn *badger.Txn) error {
		for _, msg := range msgs {
			prepare(&msg)
			val, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			entry := badger.NewEntry(messageKey(owner, sessionID, msg), val)
			if !msg.ExpiresAt.IsZero() {
				ttl := time.Until(msg.ExpiresAt)
				if ttl <= 0 {
					continue
				}
				entry = entry.WithTTL(ttl)
			}
			if err := txn.SetEntry(entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errs.NewDatabaseError("create", "failed to save agent message", err)
	}
	return nil
}

// List returns the newest limit messages, oldest first. limit <= 0 returns
// the whole session.
func (h *BadgerHistory) List(ctx context.Context, owner, sessionID string, limit int) ([]models.Message, error) {
	prefix := sessionPrefix(owner, sessionID)

	var out []models.Message
	err := h.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var msg models.Message
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			})
			if err != nil {
				return err
			}
			out = append(out, msg)
		}
		return nil
	})
	if err != nil {
		return nil, errs.NewDatabaseError("read", "failed to list agent messages", err)
	}

	reverseMessages(out)
	return out, nil
}
