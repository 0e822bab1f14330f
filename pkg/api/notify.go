package api

// Notification is an emulator-wide event.
type Notification int

const (
	NotifyGameLoaded Notification = iota
	NotifyConfigChanged
	NotifyConnectedToServer
	NotifyDisconnectedFromServer
)

func (n Notification) String() string {
	switch n {
	case NotifyGameLoaded:
		return "game_loaded"
	case NotifyConfigChanged:
		return "config_changed"
	case NotifyConnectedToServer:
		return "connected_to_server"
	case NotifyDisconnectedFromServer:
		return "disconnected_from_server"
	default:
		return "unknown"
	}
}

// Notifier shows messages to the user and broadcasts notifications.
type Notifier interface {
	// DisplayMessage shows a localized message identified by category and key.
	DisplayMessage(category, key string, args ...string)
	Notify(n Notification)
}

// NotificationListener receives notifications from the emulator.
type NotificationListener interface {
	ProcessNotification(n Notification)
}
