package store

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/GregMSThompson/agent-bridge/internal/errs"
)

// Secrets path
// projects/{project}/secrets/{secretID}/versions/latest
//
// The secret holds {"accessKeyId": "...", "secretAccessKey": "...", "sessionToken": "..."}.

type secretAccessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

type awsSecret struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	SessionToken    string `json:"sessionToken"`
}

// Every failure is an ExternalServiceError; these are deployment faults,
// never the caller's.

// SecretCredentials is an aws.CredentialsProvider reading a static key pair
// from Secret Manager. Wrap it in aws.NewCredentialsCache to avoid a lookup
// per request.
type SecretCredentials struct {
	client    secretAccessor
	projectID string
	secretID  string
}

func NewSecretCredentials(client secretAccessor, projectID, secretID string) *SecretCredentials {
	return &SecretCredentials{client: client, projectID: projectID, secretID: secretID}
}

func (s *SecretCredentials) secretName() string {
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, s.secretID)
}

func (s *SecretCredentials) Retrieve(ctx context.Context) (aws.Credentials, error) {
	res, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: s.secretName(),
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return aws.Credentials{}, errs.NewExternalServiceError("secretmanager", "aws credentials secret not found", false, err)
		}
		transient := status.Code(err) == codes.Unavailable || status.Code(err) == codes.DeadlineExceeded
		return aws.Credentials{}, errs.NewExternalServiceError("secretmanager", "failed to read aws credentials", transient, err)
	}

	var sec awsSecret
	if err := json.Unmarshal(res.GetPayload().GetData(), &sec); err != nil {
		return aws.Credentials{}, errs.NewExternalServiceError("secretmanager", "aws credentials secret is not valid JSON", false, err)
	}
	if sec.AccessKeyID == "" || sec.SecretAccessKey == "" {
		return aws.Credentials{}, errs.NewExternalServiceError("secretmanager", "aws credentials secret is missing a key", false, nil)
	}

	return aws.Credentials{
		AccessKeyID:     sec.AccessKeyID,
		SecretAccessKey: sec.SecretAccessKey,
		SessionToken:    sec.SessionToken,
		Source:          "SecretManager",
	}, nil
}
