package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var ErrSelectionCancelled = errors.New("device selection cancelled")

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses from the name whether a microphone is a Bluetooth
// headset, which usually records at telephone quality.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// FindDevice looks up a capture device by its exact name.
func FindDevice(ctx Context, name string) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	for i := range devices {
		if devices[i].Name == name {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("device %q not found", name)
}

// picker is the state of the interactive device list.
type picker struct {
	devices []DeviceInfo
	cursor  int
}

// handle applies one key read from a raw terminal and reports whether the
// selection is complete.
func (p *picker) handle(key []byte) (bool, error) {
	switch {
	case len(key) == 1 && key[0] == '\r', len(key) == 1 && key[0] == '\n':
		return true, nil
	case len(key) == 1 && key[0] == 3, len(key) == 1 && key[0] == 'q':
		return false, ErrSelectionCancelled
	case len(key) == 1 && key[0] == 'j', len(key) == 3 && string(key) == "\x1b[B":
		p.cursor = min(p.cursor+1, len(p.devices)-1)
	case len(key) == 1 && key[0] == 'k', len(key) == 3 && string(key) == "\x1b[A":
		p.cursor = max(p.cursor-1, 0)
	}
	return false, nil
}

func (p *picker) render(w io.Writer) {
	fmt.Fprint(w, "\r\x1b[J")
	fmt.Fprint(w, "Select input device (↑/↓, Enter to confirm):\r\n\r\n")
	for i, d := range p.devices {
		tag := ""
		if IsBluetooth(d.Name) {
			tag = " \x1b[33m[⚠ Lower audio quality]\x1b[0m"
		}
		if i == p.cursor {
			fmt.Fprintf(w, "  \x1b[1;36m▶ %s%s\x1b[0m\r\n", d.Name, tag)
		} else {
			fmt.Fprintf(w, "    %s%s\r\n", d.Name, tag)
		}
	}
}

func (p *picker) lines() int { return len(p.devices) + 2 }

// SelectDevice asks on the terminal which microphone to use. With a single
// device it returns that device without prompting.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	switch len(devices) {
	case 0:
		return nil, ErrNoDevices
	case 1:
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	p := &picker{devices: devices}
	p.render(os.Stdout)
	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		done, err := p.handle(buf[:n])
		if done || err != nil {
			fmt.Print("\r\n")
			if err != nil {
				return nil, err
			}
			return &devices[p.cursor], nil
		}
		fmt.Printf("\x1b[%dA", p.lines())
		p.render(os.Stdout)
	}
}
