package api

import (
	"strings"

	"go.uber.org/zap"

	"netplay/pkg/protocol"
)

// Headless returns collaborators that load nothing and log user-facing
// messages. Used by the CLI, where no emulation core is attached.
func Headless() Deps {
	return Deps{
		ROMs:     noROMs{},
		Emulator: nopEmulator{},
		States:   nopStates{},
		Devices:  nopDevices{},
		Inputs:   nopInputs{},
		Notifier: LogNotifier{},
	}
}

type noROMs struct{}

func (noROMs) LoadMatchingROM(string, uint32) bool { return false }

type nopEmulator struct{}

func (nopEmulator) Pause()                {}
func (nopEmulator) Resume()               {}
func (nopEmulator) SetPaused(bool)        {}
func (nopEmulator) SetSpeedOverride(bool) {}

type nopStates struct{}

func (nopStates) LoadState([]byte) error { return nil }

type nopDevices struct{}

func (nopDevices) CreateDevice(port uint8) Device { return &idleDevice{port: port} }

// idleDevice reports no buttons pressed and discards network state.
type idleDevice struct{ port uint8 }

func (d *idleDevice) Port() uint8                          { return d.port }
func (d *idleDevice) SetRawState(protocol.ControllerState) {}
func (d *idleDevice) PollState() protocol.ControllerState  { return protocol.ControllerState{} }

type nopInputs struct{}

func (nopInputs) RegisterInputProvider(InputProvider)   {}
func (nopInputs) UnregisterInputProvider(InputProvider) {}

// LogNotifier writes user-facing messages to the global zap logger.
type LogNotifier struct{}

func (LogNotifier) DisplayMessage(category, key string, args ...string) {
	zap.L().Info("message", zap.String("category", category), zap.String("key", key), zap.String("args", strings.Join(args, " ")))
}

func (LogNotifier) Notify(n Notification) {
	zap.L().Debug("notification", zap.Stringer("type", n))
}
