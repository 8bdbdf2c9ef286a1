package store

import (
	"context"
	"errors"

	"github.com/mqy/minichat/model"
)

//go:generate mockgen -destination mock/store.go -package mock github.com/mqy/minichat/store IDocStore

var ErrTooLarge = errors.New("store: document too large")

// IDocStore persists the message and profile collections.
type IDocStore interface {
	// SaveMessage inserts a confirmed message. `partition` and `offset` locate the submission
	// in the kafka topic, saving the same message at the same position twice is a no-op.
	SaveMessage(ctx context.Context, partition int, offset int64, m *model.Message) error

	// ListMessages returns the latest `limit` messages order by created time asc.
	ListMessages(ctx context.Context, limit int) ([]*model.Message, error)

	// UpsertProfile creates the profile or merges its non-empty fields, returns the stored profile.
	UpsertProfile(ctx context.Context, p *model.Profile) (*model.Profile, error)

	ListProfiles(ctx context.Context) ([]*model.Profile, error)

	IsDupKeyError(err error) bool
}
