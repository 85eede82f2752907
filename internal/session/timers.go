// Package session holds the state-machine contract shared by the
// controller and detector sides: message classification and the named
// timing intervals that drive handshake, heartbeat, and upload timing.
package session

import "time"

const (
	ConnectRetry        = 5 * time.Second
	HeartbeatInterval    = 5 * time.Second
	HeartbeatTimeout     = 15 * time.Second
	RealtimeUploadPeriod = 2 * time.Second
	StatisticsPeriod     = 60 * time.Second

	// MaxSessions is the server's session-table capacity.
	MaxSessions = 64

	// TickInterval is the read-deadline and timer-check granularity: how
	// often a blocked read wakes up even when no data has arrived, and how
	// often the heartbeat sweep and the detector loop check their timers.
	TickInterval = 1 * time.Second
)
