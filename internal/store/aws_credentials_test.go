package store

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/GregMSThompson/agent-bridge/internal/errs"
)

type stubAccessor struct {
	name string
	data string
	err  error
}

func (s *stubAccessor) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	s.name = req.Name
	if s.err != nil {
		return nil, s.err
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(s.data)},
	}, nil
}

func TestSecretCredentialsRetrieve(t *testing.T) {
	acc := &stubAccessor{data: `{"accessKeyId":"AKID","secretAccessKey":"SECRET","sessionToken":"TOKEN"}`}
	p := NewSecretCredentials(acc, "proj", "aws-agent-credentials")

	creds, err := p.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if acc.name != "projects/proj/secrets/aws-agent-credentials/versions/latest" {
		t.Fatalf("unexpected secret name %s", acc.name)
	}
	if creds.AccessKeyID != "AKID" || creds.SecretAccessKey != "SECRET" || creds.SessionToken != "TOKEN" {
		t.Fatalf("unexpected credentials %+v", creds)
	}
}

func TestSecretCredentialsErrors(t *testing.T) {
	cases := []struct {
		name  string
		acc   *stubAccessor
		check func(error) bool
	}{
		{
			name: "not found",
			acc:  &stubAccessor{err: status.Error(codes.NotFound, "missing")},
			check: func(err error) bool {
				var ext *errs.ExternalServiceError
				var nf *errs.NotFoundError
				return errors.As(err, &ext) && !ext.Transient && !errors.As(err, &nf)
			},
		},
		{
			name: "unavailable",
			acc:  &stubAccessor{err: status.Error(codes.Unavailable, "down")},
			check: func(err error) bool {
				var ext *errs.ExternalServiceError
				return errors.As(err, &ext) && ext.Transient
			},
		},
		{
			name: "bad json",
			acc:  &stubAccessor{data: "nope"},
			check: func(err error) bool {
				var ext *errs.ExternalServiceError
				return errors.As(err, &ext) && !ext.Transient
			},
		},
		{
			name: "missing key",
			acc:  &stubAccessor{data: `{"accessKeyId":"AKID"}`},
			check: func(err error) bool {
				var ext *errs.ExternalServiceError
				var ve *errs.ValidationError
				return errors.As(err, &ext) && !errors.As(err, &ve)
			},
		},
	}

	for _, tc := range cases {
		_, err := NewSecretCredentials(tc.acc, "p", "s").Retrieve(context.Background())
		if !tc.check(err) {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
	}
}
