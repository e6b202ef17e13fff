package bootstrap

import (
	"context"
	"time"

	"github.com/GregMSThompson/agent-bridge/internal/config"
	"github.com/GregMSThompson/agent-bridge/internal/crypto"
	"github.com/GregMSThompson/agent-bridge/internal/models"
	"github.com/GregMSThompson/agent-bridge/internal/store"
)

type History interface {
	Append(ctx context.Context, owner, sessionID string, msgs ...models.Message) error
	List(ctx context.Context, owner, sessionID string, limit int) ([]models.Message, error)
}

// InitHistory returns nil when history is disabled.
func (bs *Bootstrap) InitHistory(ctx context.Context, cfg *config.Config) (History, error) {
	var h History
	switch cfg.HistoryBackend {
	case config.HistoryFirestore:
		client, err := InitFirestore(ctx, cfg.ProjectID)
		if err != nil {
			return nil, err
		}
		bs.Firestore = client
		bs.closers = append(bs.closers, client.Close)
		h = store.NewFirestoreHistory(client)
	case config.HistoryBadger:
		db, err := store.OpenBadgerHistory(store.BadgerConfig{
			Path:       cfg.HistoryPath,
			Logger:     bs.Log.With("component", "badger"),
			GCInterval: 10 * time.Minute,
		})
		if err != nil {
			return nil, err
		}
		bs.closers = append(bs.closers, db.Close)
		h = db
	case config.HistoryMemory:
		h = store.NewMemoryHistory(0)
	default:
		return nil, nil
	}

	if cfg.KMSKeyName != "" {
		client, err := InitKMS(ctx)
		if err != nil {
			return nil, err
		}
		bs.closers = append(bs.closers, client.Close)
		h = store.NewEncryptedHistory(h, crypto.NewCipher(client, cfg.KMSKeyName))
	}
	return h, nil
}
