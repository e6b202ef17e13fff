package store

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/GregMSThompson/agent-bridge/internal/errs"
	"github.com/GregMSThompson/agent-bridge/internal/models"
)

// Collection path
// owners/{owner}/agent_sessions/{sessionID}/messages/{messageID}

type firestoreHistory struct {
	client *firestore.Client
}

func NewFirestoreHistory(client *firestore.Client) *firestoreHistory {
	return &firestoreHistory{client: client}
}

func (s *firestoreHistory) messagesCollection(owner, sessionID string) *firestore.CollectionRef {
	return s.client.Collection("owners").Doc(owner).Collection("agent_sessions").Doc(sessionID).Collection("messages")
}

func (s *firestoreHistory) Append(ctx context.Context, owner, sessionID string, msgs ...models.Message) error {
	col := s.messagesCollection(owner, sessionID)
	for _, msg := range msgs {
		prepare(&msg)
		if _, err := col.Doc(msg.ID).Set(ctx, msg); err != nil {
			return errs.NewDatabaseError("create", "failed to save agent message", err)
		}
	}
	return nil
}

func (s *firestoreHistory) List(ctx context.Context, owner, sessionID string, limit int) ([]models.Message, error) {
	query := s.messagesCollection(owner, sessionID).Query.OrderBy("createdAt", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var out []models.Message
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errs.NewDatabaseError("read", "failed to list agent messages", err)
		}
		var msg models.Message
		if err := doc.DataTo(&msg); err != nil {
			return nil, errs.NewDatabaseError("read", "failed to parse agent message data", err)
		}
		out = append(out, msg)
	}

	reverseMessages(out)
	return out, nil
}

// prepare fills the fields every backend needs before a write.
func prepare(msg *models.Message) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
}

func reverseMessages(msgs []models.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
