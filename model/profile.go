package model

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxDisplayNameLen is a client policy, the server does not enforce it.
	MaxDisplayNameLen = 12

	DefaultThemeColor = "#8A2BE2"
)

// ThemeColors is the palette offered by the profile editor.
var ThemeColors = []string{
	"#FF5733", "#33FF57", "#3357FF", "#F033FF",
	"#FF33A8", "#33FFF5", "#FFA500", "#4B0082",
}

// Profile is the published profile of one identity, last write wins.
type Profile struct {
	Identity    string `json:"identity,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	ThemeColor  string `json:"themeColor,omitempty"`
	PhotoData   string `json:"photoData,omitempty"`
}

func (p *Profile) Clone() *Profile {
	out := *p
	return &out
}

// Validate checks the profile editor policy.
func (p *Profile) Validate() error {
	name := strings.TrimSpace(p.DisplayName)
	if name == "" {
		return fmt.Errorf("display name: should not be empty")
	}
	if n := utf8.RuneCountInString(name); n > MaxDisplayNameLen {
		return fmt.Errorf("display name: %d characters exceeds limit %d", n, MaxDisplayNameLen)
	}
	if c := p.ThemeColor; c != "" && !IsHexColor(c) {
		return fmt.Errorf("theme color: `%s` is not #RRGGBB", c)
	}
	return nil
}

// Merge overwrites fields of p with the non-empty fields of other.
func (p *Profile) Merge(other *Profile) {
	if other.DisplayName != "" {
		p.DisplayName = other.DisplayName
	}
	if other.ThemeColor != "" {
		p.ThemeColor = other.ThemeColor
	}
	if other.PhotoData != "" {
		p.PhotoData = other.PhotoData
	}
}

func IsHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, c := range s[1:] {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
