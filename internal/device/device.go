// Package device defines the abstract device-layer boundary consumed by
// presenters (spec.md §6): display, audio, and input, as interfaces only.
// Non-goal per spec.md §1: no concrete rendering/codec/input backend is
// implemented here — NullDevice backs tests and any host wires its own
// real implementation in.
package device

// Display is the abstract blit/flip/palette surface a video or animation
// presenter writes into.
type Display interface {
	// Blit copies pixel data into the rectangle at (x, y) sized w×h, at
	// z-order z for compositing against other surfaces.
	Blit(x, y, w, h, z int32, pixels []byte) error
	// Flip presents the back buffer.
	Flip() error
	// SetPalette installs a 256-entry RGB palette.
	SetPalette(entries [256][3]byte) error
}

// Audio is the abstract PCM output buffer an audio presenter writes into.
type Audio interface {
	Write(samples []byte, sampleRate uint32) error
	Play() error
	Pause() error
	Stop() error
}

// InputEvent is a single keyboard/mouse/joystick event the device layer
// polls and hands to the notification bus.
type InputEvent struct {
	Kind int
	Data any
}

// Input polls for pending input events.
type Input interface {
	Poll() []InputEvent
}

// NullDisplay is a no-op Display, for tests and headless operation.
type NullDisplay struct{}

func (NullDisplay) Blit(x, y, w, h, z int32, pixels []byte) error { return nil }
func (NullDisplay) Flip() error                                  { return nil }
func (NullDisplay) SetPalette(entries [256][3]byte) error        { return nil }

// NullAudio is a no-op Audio, for tests and headless operation.
type NullAudio struct{}

func (NullAudio) Write(samples []byte, sampleRate uint32) error { return nil }
func (NullAudio) Play() error                                   { return nil }
func (NullAudio) Pause() error                                  { return nil }
func (NullAudio) Stop() error                                   { return nil }

// NullInput is an Input that never reports events.
type NullInput struct{}

func (NullInput) Poll() []InputEvent { return nil }
