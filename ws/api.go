package ws

import (
	"context"
	"fmt"
	"strings"

	"github.com/pborman/uuid"

	"github.com/mqy/minichat/model"
	"github.com/mqy/minichat/store"
	"github.com/mqy/minichat/wire"
)

const (
	MinPayloadMaxBytes = 4096
	MaxPayloadMaxBytes = 4 << 20

	// json envelope and short fields of one frame.
	frameOverheadBytes = 4096
	// json escapes one byte into at most six, e.g. `\u003c`.
	jsonEscapeFactor = 6

	maxSenderNameLen = 64
)

// FrameMaxBytes bounds the json of one request, or of one kafka value, whose
// payload is within `payloadMaxBytes`.
func FrameMaxBytes(payloadMaxBytes int) int {
	return payloadMaxBytes*jsonEscapeFactor + frameOverheadBytes
}

func messagePayloadBytes(m *model.Message) int {
	return len(m.Text) + len(m.ImageData) + len(m.SenderPhoto) + len(m.SenderName)
}

func profilePayloadBytes(p *model.Profile) int {
	return len(p.PhotoData) + len(p.DisplayName)
}

// Submitter forwards validated messages to storage, which assigns the server timestamp.
type Submitter interface {
	Submit(ctx context.Context, msg *model.Message) error
}

type Conf struct {
	// PayloadMaxBytes bounds the text, images and names of a message, or the photo
	// and name of a profile, all together.
	PayloadMaxBytes int
	// HistoryLimit is the number of stored messages loaded on start.
	HistoryLimit int
}

// DocApi serves websocket client writes.
type DocApi struct {
	store     store.IDocStore
	submitter Submitter
	conf      *Conf
}

func NewApi(store store.IDocStore, submitter Submitter, conf *Conf) *DocApi {
	return &DocApi{
		store:     store,
		submitter: submitter,
		conf:      conf,
	}
}

// AddMessage validates and submits the message of user `uid`, returns the assigned id.
func (s *DocApi) AddMessage(ctx context.Context, uid string, req int64, msg *model.Message) (string, *wire.Error) {
	var errs []string

	if !msg.HasContent() {
		errs = append(errs, "text: should not be empty without image")
	}
	if v := msg.ImageData; v != "" {
		if !strings.HasPrefix(v, "data:image/") {
			errs = append(errs, "image_data: should be a data uri of image")
		}
	}
	if n := messagePayloadBytes(msg); n > s.conf.PayloadMaxBytes {
		errs = append(errs, fmt.Sprintf("payload: %d bytes exceeds limit: %d bytes", n, s.conf.PayloadMaxBytes))
	}
	if len(msg.SenderName) > maxSenderNameLen {
		errs = append(errs, fmt.Sprintf("sender_name: exceeds limit: %d bytes", maxSenderNameLen))
	}
	if v := msg.SenderColor; v != "" && !model.IsHexColor(v) {
		errs = append(errs, "sender_color: should be #RRGGBB")
	}

	if len(errs) > 0 {
		rejectedSubmissions.Inc()
		return "", wire.NewInvalidArgumentError(req, errs...)
	}

	v := msg.Clone()
	v.ID = strings.ReplaceAll(uuid.New(), "-", "")
	v.SenderID = uid
	v.CreatedAt = nil

	if err := s.submitter.Submit(ctx, v); err != nil {
		return "", wire.NewInternalError(req, err.Error())
	}
	return v.ID, nil
}

// UpsertProfile merges the profile of user `uid`, returns the stored profile.
func (s *DocApi) UpsertProfile(ctx context.Context, uid string, req int64, p *model.Profile) (*model.Profile, *wire.Error) {
	var errs []string

	if n := profilePayloadBytes(p); n > s.conf.PayloadMaxBytes {
		errs = append(errs, fmt.Sprintf("payload: %d bytes exceeds limit: %d bytes", n, s.conf.PayloadMaxBytes))
	}
	if len(p.DisplayName) > maxSenderNameLen {
		errs = append(errs, fmt.Sprintf("display_name: exceeds limit: %d bytes", maxSenderNameLen))
	}
	if v := p.ThemeColor; v != "" && !model.IsHexColor(v) {
		errs = append(errs, "theme_color: should be #RRGGBB")
	}
	if len(errs) > 0 {
		return nil, wire.NewInvalidArgumentError(req, errs...)
	}

	v := p.Clone()
	v.Identity = uid
	out, err := s.store.UpsertProfile(ctx, v)
	if err != nil {
		return nil, wire.NewInternalError(req, err.Error())
	}
	profileUpserts.Inc()
	return out, nil
}
