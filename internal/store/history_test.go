package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GregMSThompson/agent-bridge/internal/models"
)

func seedMessages(base time.Time, n int) []models.Message {
	msgs := make([]models.Message, 0, n)
	for i := 0; i < n; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		msgs = append(msgs, models.Message{
			Role:      role,
			Content:   fmt.Sprintf("m%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	return msgs
}

func contents(msgs []models.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Content)
	}
	return out
}

func exerciseHistory(t *testing.T, h history) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, h.Append(ctx, "owner", "s1", seedMessages(base, 5)...))
	require.NoError(t, h.Append(ctx, "owner", "s2", models.Message{Role: models.RoleUser, Content: "other", CreatedAt: base}))
	require.NoError(t, h.Append(ctx, "owner/evil", "s1", models.Message{Role: models.RoleUser, Content: "escaped", CreatedAt: base}))

	all, err := h.List(ctx, "owner", "s1", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"m0", "m1", "m2", "m3", "m4"}, contents(all))
	for _, m := range all {
		assert.NotEmpty(t, m.ID)
	}

	last, err := h.List(ctx, "owner", "s1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"m3", "m4"}, contents(last))

	other, err := h.List(ctx, "owner", "s2", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"other"}, contents(other))

	none, err := h.List(ctx, "owner", "missing", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryHistory(t *testing.T) {
	exerciseHistory(t, NewMemoryHistory(0))
}

func TestMemoryHistoryCapacity(t *testing.T) {
	h := NewMemoryHistory(3)
	base := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, h.Append(context.Background(), "o", "s", seedMessages(base, 5)...))

	got, err := h.List(context.Background(), "o", "s", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"m2", "m3", "m4"}, contents(got))
}

func TestMemoryHistoryExpiry(t *testing.T) {
	h := NewMemoryHistory(10)
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	require.NoError(t, h.Append(context.Background(), "o", "s",
		models.Message{Content: "old", CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(-time.Minute)},
		models.Message{Content: "fresh", CreatedAt: now, ExpiresAt: now.Add(time.Hour)},
	))

	got, err := h.List(context.Background(), "o", "s", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, contents(got))
}

func TestBadgerHistory(t *testing.T) {
	h, err := OpenBadgerHistory(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer h.Close()

	exerciseHistory(t, h)
}

func TestBadgerHistorySkipsExpired(t *testing.T) {
	h, err := OpenBadgerHistory(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer h.Close()

	now := time.Now()
	require.NoError(t, h.Append(context.Background(), "o", "s",
		models.Message{Content: "gone", CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(-time.Minute)},
		models.Message{Content: "kept", CreatedAt: now, ExpiresAt: now.Add(time.Hour)},
	))

	got, err := h.List(context.Background(), "o", "s", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, contents(got))
}

func TestBadgerHistoryRequiresPath(t *testing.T) {
	_, err := OpenBadgerHistory(BadgerConfig{})
	assert.Error(t, err)
}

func TestFirestoreHistoryWithEmulator(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	ctx := context.Background()
	client, err := firestore.NewClient(ctx, "test-project")
	if err != nil {
		t.Fatalf("firestore client error: %v", err)
	}
	defer client.Close()

	exerciseHistory(t, NewFirestoreHistory(client))
}

type prefixCipher struct {
	err error
}

func (c prefixCipher) Encrypt(ctx context.Context, plaintext string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return "enc:" + plaintext, nil
}

func (c prefixCipher) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return strings.TrimPrefix(ciphertext, "enc:"), nil
}

func TestEncryptedHistory(t *testing.T) {
	inner := NewMemoryHistory(10)
	h := NewEncryptedHistory(inner, prefixCipher{})
	ctx := context.Background()

	require.NoError(t, h.Append(ctx, "o", "s", models.Message{Role: models.RoleUser, Content: "secret"}))
	// written before encryption was enabled
	require.NoError(t, inner.Append(ctx, "o", "s", models.Message{Role: models.RoleAssistant, Content: "legacy", CreatedAt: time.Now().Add(time.Hour)}))

	raw, err := inner.List(ctx, "o", "s", 0)
	require.NoError(t, err)
	assert.Equal(t, "enc:secret", raw[0].Content)
	assert.True(t, raw[0].Encrypted)

	got, err := h.List(ctx, "o", "s", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"secret", "legacy"}, contents(got))
	assert.False(t, got[0].Encrypted)
}

func TestEncryptedHistoryCipherFailure(t *testing.T) {
	inner := NewMemoryHistory(10)
	h := NewEncryptedHistory(inner, prefixCipher{err: errors.New("kms down")})

	err := h.Append(context.Background(), "o", "s", models.Message{Content: "x"})
	require.Error(t, err)

	stored, _ := inner.List(context.Background(), "o", "s", 0)
	assert.Empty(t, stored)
}
