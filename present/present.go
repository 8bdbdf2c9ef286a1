// Package present resolves the display identity of messages at render time.
//
// Precedence is live profile > snapshot embedded in the message > fallback.
// A user who renames relabels all of their past messages in every client,
// stored messages are never rewritten.
package present

import (
	"strings"
	"unicode"

	"github.com/mqy/minichat/auth"
	"github.com/mqy/minichat/model"
)

const (
	// fallback colors differ so that the name stays readable on either bubble.
	DefaultMineColor  = "#555555"
	DefaultOtherColor = "#8A2BE2"
)

type Display struct {
	Name  string
	Color string
	Photo string
	Mine  bool
}

// Resolve joins m with the live profiles of the directory, `self` is the local identity.
func Resolve(self string, m *model.Message, profiles map[string]*model.Profile) Display {
	d := Display{Mine: m.SenderID == self}

	var live *model.Profile
	if profiles != nil {
		live = profiles[m.SenderID]
	}

	d.Name = pick(live, func(p *model.Profile) string { return p.DisplayName }, m.SenderName)
	if d.Name == "" {
		d.Name = auth.LocalPart(m.SenderID)
	}

	d.Color = pick(live, func(p *model.Profile) string { return p.ThemeColor }, m.SenderColor)
	if d.Color == "" {
		if d.Mine {
			d.Color = DefaultMineColor
		} else {
			d.Color = DefaultOtherColor
		}
	}

	d.Photo = pick(live, func(p *model.Profile) string { return p.PhotoData }, m.SenderPhoto)
	return d
}

func pick(live *model.Profile, field func(*model.Profile) string, snapshot string) string {
	if live != nil {
		if v := field(live); v != "" {
			return v
		}
	}
	return snapshot
}

// Initial is the avatar letter shown when there is no photo.
func Initial(name string) string {
	for _, r := range strings.TrimSpace(name) {
		return string(unicode.ToUpper(r))
	}
	return "?"
}
