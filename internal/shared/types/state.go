package types

import "time"

// ServerStatus is the payload of GET /api/status.
type ServerStatus struct {
	Status  string    `json:"status"`
	Clients int       `json:"clients"`
	Started time.Time `json:"started"`
	Uptime  string    `json:"uptime"`

	BytesSent     uint64 `json:"bytes_sent"`
	BytesReceived uint64 `json:"bytes_received"`
}
