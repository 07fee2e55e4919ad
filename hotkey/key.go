package hotkey

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrUnknownKey = errors.New("unknown key")

type Modifier int

const (
	ModCtrl Modifier = iota + 1
	ModShift
)

// Key identifies the push-to-talk key. Code is the Linux input event code of
// the trigger; Mods must be held when the trigger goes down.
type Key struct {
	Name string
	Code uint16
	Mods []Modifier
}

func (k Key) String() string { return k.Name }

// evdev codes from linux/input-event-codes.h
var keys = map[string]Key{
	"f1":               {Code: 59},
	"f2":               {Code: 60},
	"f3":               {Code: 61},
	"f4":               {Code: 62},
	"f5":               {Code: 63},
	"f6":               {Code: 64},
	"f7":               {Code: 65},
	"f8":               {Code: 66},
	"f9":               {Code: 67},
	"f10":              {Code: 68},
	"f11":              {Code: 87},
	"f12":              {Code: 88},
	"left_alt":         {Code: 56},
	"right_alt":        {Code: 100},
	"right_ctrl":       {Code: 97},
	"caps_lock":        {Code: 58},
	"scroll_lock":      {Code: 70},
	"insert":           {Code: 110},
	"pause":            {Code: 119},
	"ctrl+shift+space": {Code: 57, Mods: []Modifier{ModCtrl, ModShift}},
}

var aliases = map[string]string{
	"alt_r":      "right_alt",
	"alt_gr":     "right_alt",
	"ctrl_r":     "right_ctrl",
	"alt_l":      "left_alt",
	"capslock":   "caps_lock",
	"scrolllock": "scroll_lock",
}

// ParseKey accepts names like "f9", "right_alt" or "ctrl+shift+space".
// Case, surrounding spaces and "-" versus "_" are ignored.
func ParseKey(s string) (Key, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, " ", "")
	if a, ok := aliases[name]; ok {
		name = a
	}
	k, ok := keys[name]
	if !ok {
		return Key{}, fmt.Errorf("%w %q (supported: %s)", ErrUnknownKey, s, strings.Join(KeyNames(), ", "))
	}
	k.Name = name
	return k, nil
}

func KeyNames() []string {
	names := make([]string, 0, len(keys))
	for n := range keys {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (k Key) needs(m Modifier) bool {
	for _, x := range k.Mods {
		if x == m {
			return true
		}
	}
	return false
}
