package bootstrap

import (
	"context"
	"testing"

	"github.com/GregMSThompson/agent-bridge/internal/config"
	"github.com/GregMSThompson/agent-bridge/internal/models"
	"github.com/GregMSThompson/agent-bridge/internal/store"
	"github.com/GregMSThompson/agent-bridge/pkg/logger"
)

func TestInitHistoryBackends(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		backend string
		wantNil bool
	}{
		{config.HistoryNone, true},
		{config.HistoryMemory, false},
		{config.HistoryBadger, false},
	}
	for _, tc := range cases {
		bs := &Bootstrap{Log: logger.NewTestLogger()}
		cfg := &config.Config{HistoryBackend: tc.backend, HistoryPath: t.TempDir()}

		h, err := bs.InitHistory(ctx, cfg)
		if err != nil {
			t.Fatalf("%s: InitHistory error: %v", tc.backend, err)
		}
		if (h == nil) != tc.wantNil {
			t.Fatalf("%s: history nil = %v, want %v", tc.backend, h == nil, tc.wantNil)
		}
		if h != nil {
			if err := h.Append(ctx, "o", "s", models.Message{Role: models.RoleUser, Content: "hi"}); err != nil {
				t.Fatalf("%s: append: %v", tc.backend, err)
			}
			msgs, err := h.List(ctx, "o", "s", 0)
			if err != nil || len(msgs) != 1 {
				t.Fatalf("%s: list = %v, %v", tc.backend, msgs, err)
			}
		}
		if err := bs.Close(); err != nil {
			t.Fatalf("%s: close: %v", tc.backend, err)
		}
	}
}

func TestInitHistoryBadgerType(t *testing.T) {
	bs := &Bootstrap{Log: logger.NewTestLogger()}
	defer bs.Close()

	h, err := bs.InitHistory(context.Background(), &config.Config{HistoryBackend: config.HistoryBadger, HistoryPath: t.TempDir()})
	if err != nil {
		t.Fatalf("InitHistory error: %v", err)
	}
	if _, ok := h.(*store.BadgerHistory); !ok {
		t.Fatalf("expected *store.BadgerHistory, got %T", h)
	}
	if len(bs.closers) != 1 {
		t.Fatalf("expected badger to register a closer")
	}
}
