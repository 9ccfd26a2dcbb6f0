package ports

import "context"

// Heartbeat is the periodic telemetry emitted by the controller.
type Heartbeat struct {
	Total    int
	InPlay   int
	Assigned int
	Tick     int
}

// Notifier delivers heartbeats to the user (console table, Telegram, ...).
type Notifier interface {
	Heartbeat(ctx context.Context, hb Heartbeat) error
}
