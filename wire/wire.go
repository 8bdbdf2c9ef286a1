// Package wire defines the JSON frames exchanged over the websocket between
// the chat client and the server.
package wire

import (
	"fmt"
	"strings"

	"github.com/mqy/minichat/model"
)

const (
	CollectionMessages = "messages"
	CollectionProfiles = "users"
)

const (
	ErrorCodeInvalidArguments = 3
	ErrorCodeInternal         = 13
)

// ClientMsg is a client request, exactly one of the pointer fields is set.
// `Req` is chosen by the client and echoed in the Ack or Error.
type ClientMsg struct {
	Req int64 `json:"req,omitempty"`

	Subscribe     *Subscribe     `json:"subscribe,omitempty"`
	Unsubscribe   *Unsubscribe   `json:"unsubscribe,omitempty"`
	AddMessage    *model.Message `json:"add_message,omitempty"`
	UpsertProfile *model.Profile `json:"upsert_profile,omitempty"`
}

type Subscribe struct {
	SubID      string `json:"sub_id"`
	Collection string `json:"collection"`
}

type Unsubscribe struct {
	SubID string `json:"sub_id"`
}

// ServerMsg is a server push or response, exactly one field is set.
type ServerMsg struct {
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	Ack      *Ack      `json:"ack,omitempty"`
	Error    *Error    `json:"error,omitempty"`
}

// Snapshot is the complete state of a subscribed collection plus the changes since
// the previous snapshot of the same subscription.
type Snapshot struct {
	SubID      string           `json:"sub_id"`
	Collection string           `json:"collection"`
	Messages   []*model.Message `json:"messages,omitempty"`
	Profiles   []*model.Profile `json:"profiles,omitempty"`
	Changes    []model.Change   `json:"changes,omitempty"`
}

type Ack struct {
	Req int64  `json:"req"`
	ID  string `json:"id,omitempty"` // id of the added message.
}

type Error struct {
	Code   int32    `json:"code"`
	Params []string `json:"params,omitempty"`
	Req    int64    `json:"req,omitempty"`
	SubID  string   `json:"sub_id,omitempty"` // set when the subscription was rejected.
}

func (e *Error) Error() string {
	return fmt.Sprintf("code %d: %s", e.Code, strings.Join(e.Params, "; "))
}

func NewInvalidArgumentError(req int64, errs ...string) *Error {
	return &Error{
		Code:   ErrorCodeInvalidArguments,
		Params: errs,
		Req:    req,
	}
}

func NewInternalError(req int64, err string) *Error {
	return &Error{
		Code:   ErrorCodeInternal,
		Params: []string{err},
		Req:    req,
	}
}

// Intercept hides internal details from clients.
func Intercept(err *Error) {
	if err.Code == ErrorCodeInternal {
		err.Params = []string{"temp storage error"}
	}
}
