package store

import (
	"context"

	"github.com/GregMSThompson/agent-bridge/internal/models"
)

type history interface {
	Append(ctx context.Context, owner, sessionID string, msgs ...models.Message) error
	List(ctx context.Context, owner, sessionID string, limit int) ([]models.Message, error)
}

type cipher interface {
	Encrypt(ctx context.Context, plaintext string) (string, error)
	Decrypt(ctx context.Context, ciphertext string) (string, error)
}

// encryptedHistory encrypts message content before it reaches the wrapped
// backend. Messages written before encryption was enabled are returned as is.
type encryptedHistory struct {
	next   history
	cipher cipher
}

func NewEncryptedHistory(next history, c cipher) *encryptedHistory {
	return &encryptedHistory{next: next, cipher: c}
}

func (s *encryptedHistory) Append(ctx context.Context, owner, sessionID string, msgs ...models.Message) error {
	sealed := make([]models.Message, 0, len(msgs))
	for _, msg := range msgs {
		if !msg.Encrypted {
			ct, err := s.cipher.Encrypt(ctx, msg.Content)
			if err != nil {
				return err
			}
			msg.Content = ct
			msg.Encrypted = true
		}
		sealed = append(sealed, msg)
	}
	return s.next.Append(ctx, owner, sessionID, sealed...)
}

func (s *encryptedHistory) List(ctx context.Context, owner, sessionID string, limit int) ([]models.Message, error) {
	msgs, err := s.next.List(ctx, owner, sessionID, limit)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		if !msgs[i].Encrypted {
			continue
		}
		pt, err := s.cipher.Decrypt(ctx, msgs[i].Content)
		if err != nil {
			return nil, err
		}
		msgs[i].Content = pt
		msgs[i].Encrypted = false
	}
	return msgs, nil
}
