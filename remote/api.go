package remote

import (
	"context"
	"errors"

	"github.com/mqy/minichat/model"
)

//go:generate mockgen -destination mock/remote.go -package mock github.com/mqy/minichat/remote MessageCollection,ProfileCollection,MessageSubscription,ProfileSubscription

var ErrClosed = errors.New("remote: closed")

// MessageSnapshot is one change notification of a message subscription.
// The last notification of a failed subscription carries `Err` only.
type MessageSnapshot struct {
	Messages []*model.Message // complete snapshot, order by created time asc.
	Changes  []model.Change   // changes since the previous notification of the same subscription.
	Err      error
}

// ProfileSnapshot is one change notification of a profile subscription.
type ProfileSnapshot struct {
	Profiles []*model.Profile // complete snapshot.
	Err      error
}

type MessageSubscription interface {
	// C delivers snapshots in order, it is closed after Close or after an error snapshot.
	C() <-chan *MessageSnapshot
	Close()
}

type ProfileSubscription interface {
	C() <-chan *ProfileSnapshot
	Close()
}

// MessageCollection is the remote append-only message collection.
type MessageCollection interface {
	// Add inserts the message requesting a server assigned timestamp, returns the new id.
	Add(ctx context.Context, m *model.Message) (string, error)

	// Subscribe opens a live subscription ordered by created time asc.
	// The first snapshot carries every document as `added`.
	Subscribe(ctx context.Context) (MessageSubscription, error)
}

// ProfileCollection is the remote profile collection, one document per identity.
type ProfileCollection interface {
	// Upsert creates the profile or merges the non-empty fields into the existing one.
	Upsert(ctx context.Context, p *model.Profile) error

	Subscribe(ctx context.Context) (ProfileSubscription, error)
}
