// Package api declares the emulator-side collaborators the netplay layer
// drives. Implementations live in the embedding application; Headless
// provides inert ones for tools and tests.
package api

import "netplay/pkg/protocol"

// ROMLoader finds and loads a local game matching the host's.
type ROMLoader interface {
	// LoadMatchingROM loads filename if a local copy with the same CRC32 exists.
	LoadMatchingROM(filename string, crc32 uint32) bool
}

// Emulator is the run control of the emulation core.
type Emulator interface {
	Pause()
	Resume()
	// SetPaused applies the host's pause/run flag.
	SetPaused(paused bool)
	// SetSpeedOverride forces maximum speed when on; off restores the configured speed.
	SetSpeedOverride(on bool)
}

// StateLoader applies a serialized emulation state.
type StateLoader interface {
	LoadState(state []byte) error
}

// Device is a controller device fed with raw port state.
type Device interface {
	Port() uint8
	// SetRawState applies state received from the network.
	SetRawState(state protocol.ControllerState)
	// PollState reads the local player's current input.
	PollState() protocol.ControllerState
}

// DeviceFactory creates the local control device for a port.
type DeviceFactory interface {
	CreateDevice(port uint8) Device
}

// InputProvider supplies per-frame input to the emulation thread.
type InputProvider interface {
	// SetInput fills dev with the next queued state for its port. It may block.
	SetInput(dev Device) bool
}

// InputRegistry lets an InputProvider attach to and detach from the core.
type InputRegistry interface {
	RegisterInputProvider(p InputProvider)
	UnregisterInputProvider(p InputProvider)
}

// Deps bundles every collaborator a client session needs.
type Deps struct {
	ROMs     ROMLoader
	Emulator Emulator
	States   StateLoader
	Devices  DeviceFactory
	Inputs   InputRegistry
	Notifier Notifier
}

// WithDefaults fills nil collaborators with headless ones.
func (d Deps) WithDefaults() Deps {
	h := Headless()
	if d.ROMs == nil {
		d.ROMs = h.ROMs
	}
	if d.Emulator == nil {
		d.Emulator = h.Emulator
	}
	if d.States == nil {
		d.States = h.States
	}
	if d.Devices == nil {
		d.Devices = h.Devices
	}
	if d.Inputs == nil {
		d.Inputs = h.Inputs
	}
	if d.Notifier == nil {
		d.Notifier = h.Notifier
	}
	return d
}
