package document

// Key is a host keyboard notification, identified by its DOM-style name.
type Key struct {
	Name string
}

// navigation and modifier keys never change content; delivering them to the
// engine would only trigger pointless rescans
var passiveKeys = map[string]struct{}{
	"ArrowUp": {}, "ArrowDown": {}, "ArrowLeft": {}, "ArrowRight": {},
	"Home": {}, "End": {}, "PageUp": {}, "PageDown": {},
	"Shift": {}, "Control": {}, "Alt": {}, "Meta": {},
	"CapsLock": {}, "NumLock": {}, "ScrollLock": {},
	"Escape": {}, "Insert": {},
	"F1": {}, "F2": {}, "F3": {}, "F4": {}, "F5": {}, "F6": {},
	"F7": {}, "F8": {}, "F9": {}, "F10": {}, "F11": {}, "F12": {},
}

// Passive reports whether the key is pure navigation or a modifier.
func (k Key) Passive() bool {
	_, ok := passiveKeys[k.Name]
	return ok
}

// KeyUp delivers a key release to subscribers, dropping passive keys.
func (d *Document) KeyUp(k Key) {
	if k.Passive() {
		return
	}
	for _, fn := range d.keyHandlers {
		fn(k)
	}
}
