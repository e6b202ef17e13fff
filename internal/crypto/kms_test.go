package crypto

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/googleapis/gax-go/v2"

	"github.com/GregMSThompson/agent-bridge/internal/errs"
)

// reversingKMS "encrypts" by reversing bytes and remembers the key it saw.
type reversingKMS struct {
	key string
	err error
}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}

func (k *reversingKMS) Encrypt(ctx context.Context, req *kmspb.EncryptRequest, opts ...gax.CallOption) (*kmspb.EncryptResponse, error) {
	k.key = req.Name
	if k.err != nil {
		return nil, k.err
	}
	return &kmspb.EncryptResponse{Ciphertext: reverse(req.Plaintext)}, nil
}

func (k *reversingKMS) Decrypt(ctx context.Context, req *kmspb.DecryptRequest, opts ...gax.CallOption) (*kmspb.DecryptResponse, error) {
	k.key = req.Name
	if k.err != nil {
		return nil, k.err
	}
	return &kmspb.DecryptResponse{Plaintext: reverse(req.Ciphertext)}, nil
}

func TestCipherRoundTrip(t *testing.T) {
	fake := &reversingKMS{}
	c := NewCipher(fake, "projects/p/locations/l/keyRings/r/cryptoKeys/history")

	enc, err := c.Encrypt(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if enc == "hello" {
		t.Fatalf("expected ciphertext to differ from plaintext")
	}
	dec, err := c.Decrypt(context.Background(), enc)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if dec != "hello" {
		t.Fatalf("round trip = %q", dec)
	}
	if fake.key != "projects/p/locations/l/keyRings/r/cryptoKeys/history" {
		t.Fatalf("unexpected key name %q", fake.key)
	}
}

func TestCipherErrors(t *testing.T) {
	c := NewCipher(&reversingKMS{err: errors.New("denied")}, "k")

	var encErr *errs.EncryptionError
	if _, err := c.Encrypt(context.Background(), "x"); !errors.As(err, &encErr) {
		t.Fatalf("expected EncryptionError, got %v", err)
	}
	if _, err := c.Decrypt(context.Background(), "not base64!"); !errors.As(err, &encErr) {
		t.Fatalf("expected EncryptionError for bad base64, got %v", err)
	}
}
