// Package classify labels target crops by colour and shape and applies the
// friend/foe and shape/colour double-check rules. It works on scalar
// measurements only; pixel access lives in the vision package.
package classify

import (
	"fmt"
	"strings"
)

// Color is a coarse balloon colour.
type Color string

const (
	ColorUnknown Color = "unknown"
	ColorRed     Color = "red"
	ColorGreen   Color = "green"
	ColorBlue    Color = "blue"
)

// ParseColor accepts red, green or blue in any case.
func ParseColor(s string) (Color, error) {
	switch c := Color(strings.ToLower(strings.TrimSpace(s))); c {
	case ColorRed, ColorGreen, ColorBlue:
		return c, nil
	}
	return ColorUnknown, fmt.Errorf("unknown colour %q", s)
}

// ColorFromHue maps an OpenCV hue (0..180) to a colour. Red wraps around
// both ends of the hue circle.
func ColorFromHue(h float64) Color {
	switch {
	case h < 15 || h > 170:
		return ColorRed
	case h >= 40 && h <= 85:
		return ColorGreen
	case h >= 95 && h <= 130:
		return ColorBlue
	}
	return ColorUnknown
}

// Label is the friend/foe verdict for a target.
type Label string

const (
	LabelUnknown Label = "unknown"
	LabelFriend  Label = "friend"
	LabelFoe     Label = "foe"
)

// FriendFoe holds the colour assignment for one exercise.
type FriendFoe struct {
	Friend Color
	Foe    Color
}

// DefaultFriendFoe is green friends and red foes.
func DefaultFriendFoe() FriendFoe {
	return FriendFoe{Friend: ColorGreen, Foe: ColorRed}
}

// NewFriendFoe parses the colour names from the tuning file.
func NewFriendFoe(friend, foe string) (FriendFoe, error) {
	fc, err := ParseColor(friend)
	if err != nil {
		return FriendFoe{}, fmt.Errorf("friend: %w", err)
	}
	ec, err := ParseColor(foe)
	if err != nil {
		return FriendFoe{}, fmt.Errorf("foe: %w", err)
	}
	if fc == ec {
		return FriendFoe{}, fmt.Errorf("friend and foe colours must differ, both %s", fc)
	}
	return FriendFoe{Friend: fc, Foe: ec}, nil
}

// Label classifies c.
func (ff FriendFoe) Label(c Color) Label {
	switch c {
	case ff.Foe:
		return LabelFoe
	case ff.Friend:
		return LabelFriend
	}
	return LabelUnknown
}

// FireAllowed is true only for the foe colour.
func (ff FriendFoe) FireAllowed(c Color) bool {
	return c != ColorUnknown && c == ff.Foe
}
