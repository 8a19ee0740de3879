package signal

import (
	"fmt"
	"strings"
)

// Channel identifies one of the device's two outputs.
type Channel int

const (
	// Red is the "busy" output.
	Red Channel = iota

	// Yellow is the "away" output.
	Yellow
)

// Channels lists every channel in write order.
var Channels = []Channel{Red, Yellow}

// String returns the lowercase channel name.
func (c Channel) String() string {
	switch c {
	case Red:
		return "red"
	case Yellow:
		return "yellow"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// State is the desired output of both channels.
//
// State is a plain value. It is recomputed from the current status label on
// every tick and never updated in place.
type State struct {
	Red    bool `json:"red"`
	Yellow bool `json:"yellow"`
}

// On reports whether the given channel should be lit.
func (s State) On(c Channel) bool {
	switch c {
	case Red:
		return s.Red
	case Yellow:
		return s.Yellow
	default:
		return false
	}
}

// String renders the state as "red=on yellow=off".
func (s State) String() string {
	return fmt.Sprintf("red=%s yellow=%s", onOff(s.Red), onOff(s.Yellow))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// Category names a signal state so users can reassign status labels.
type Category string

const (
	// CategoryRed lights only the red channel.
	CategoryRed Category = "red"

	// CategoryYellow lights only the yellow channel.
	CategoryYellow Category = "yellow"

	// CategoryOff turns both channels off.
	CategoryOff Category = "off"
)

// Categories lists the valid categories in display order.
var Categories = []Category{CategoryRed, CategoryYellow, CategoryOff}

// State returns the signal state the category stands for.
// Unknown categories return the zero state.
func (c Category) State() State {
	switch c {
	case CategoryRed:
		return State{Red: true}
	case CategoryYellow:
		return State{Yellow: true}
	default:
		return State{}
	}
}

// Valid reports whether c is one of [Categories].
func (c Category) Valid() bool {
	switch c {
	case CategoryRed, CategoryYellow, CategoryOff:
		return true
	default:
		return false
	}
}

// ParseCategory parses a category name, ignoring case and surrounding space.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q (expected red, yellow, or off)", s)
	}
	return c, nil
}
