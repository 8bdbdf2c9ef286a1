// Package compose builds outgoing messages and submits them to the remote collection.
package compose

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/golang/glog"

	"github.com/mqy/minichat/auth"
	"github.com/mqy/minichat/media"
	"github.com/mqy/minichat/model"
	"github.com/mqy/minichat/remote"
)

// ErrSubmit wraps every failure of the remote write.
var ErrSubmit = errors.New("send message")

type ProfileLookup interface {
	Lookup(identity string) *model.Profile
}

// Alerter shows a submission error to the user.
type Alerter func(err error)

// Composer holds the pending text. There is no optimistic insert: a sent message
// shows up only when the feed delivers it.
type Composer struct {
	self     auth.Identity
	messages remote.MessageCollection
	profiles ProfileLookup

	lock  sync.Mutex
	text  string
	alert Alerter
}

func New(self auth.Identity, messages remote.MessageCollection, profiles ProfileLookup) *Composer {
	return &Composer{
		self:     self,
		messages: messages,
		profiles: profiles,
	}
}

func (c *Composer) SetAlerter(fn Alerter) {
	c.lock.Lock()
	c.alert = fn
	c.lock.Unlock()
}

func (c *Composer) SetText(text string) {
	c.lock.Lock()
	c.text = text
	c.lock.Unlock()
}

func (c *Composer) Text() string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.text
}

// Send submits the pending text with an optional image data URI and blocks until
// the remote write completes. Nothing is sent when the trimmed text is empty and
// there is no image. On success the pending text is cleared, unless it was edited
// meanwhile.
func (c *Composer) Send(ctx context.Context, image string) error {
	text := c.Text()
	if strings.TrimSpace(text) == "" && image == "" {
		return nil
	}

	msg := c.build(text, image)
	id, err := c.messages.Add(ctx, msg)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrSubmit, err)
		glog.Errorf("compose: %v", err)
		c.lock.Lock()
		alert := c.alert
		c.lock.Unlock()
		if alert != nil {
			alert(err)
		}
		return err
	}
	glog.V(5).Infof("compose: sent message %s", id)

	c.lock.Lock()
	if c.text == text {
		c.text = ""
	}
	c.lock.Unlock()
	return nil
}

// SendImageFile encodes the image at path and sends it with the pending text.
func (c *Composer) SendImageFile(ctx context.Context, path string) error {
	image, err := media.EncodeFile(path)
	if err != nil {
		return err
	}
	return c.Send(ctx, image)
}

func (c *Composer) build(text, image string) *model.Message {
	msg := &model.Message{
		Text:       text,
		ImageData:  image,
		SenderID:   c.self.ID,
		SenderName: c.self.DisplayName,
	}
	if c.profiles == nil {
		return msg
	}
	if p := c.profiles.Lookup(c.self.ID); p != nil {
		if p.DisplayName != "" {
			msg.SenderName = p.DisplayName
		}
		msg.SenderColor = p.ThemeColor
		msg.SenderPhoto = p.PhotoData
	}
	return msg
}
