package interfaces

import (
	"context"

	"github.com/KevinKickass/OpenVNA/internal/config"
	"github.com/KevinKickass/OpenVNA/internal/devices"
	"github.com/KevinKickass/OpenVNA/internal/profiles"
	"github.com/KevinKickass/OpenVNA/internal/storage"
)

// SystemStatus represents the current system state
type SystemStatus struct {
	State       string `json:"state"`
	Instruments int    `json:"instruments"`
	Clients     int    `json:"websocket_clients"`
	Database    bool   `json:"database"`
	Error       string `json:"error,omitempty"`
}

// Backend is what the API layer needs from the running system.
type Backend interface {
	Config() *config.Config
	Sessions() *devices.Manager
	Profiles() *profiles.Loader
	Measurements() storage.Store
	GetCurrentStatus() SystemStatus
	Shutdown(ctx context.Context) error
}
