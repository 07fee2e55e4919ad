package hotkey

// Hotkey reports edges of one configured key. Keydown fires once per press
// and Keyup once per release of the same press.
type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}
