package store

import (
	"time"

	"neviweb-go-home/internal/thermostat"
)

// Device is a discovered Neviweb thermostat.
type Device struct {
	ID           int               `json:"id"`
	Name         string            `json:"name"`
	FriendlyName string            `json:"friendly_name,omitempty"`
	SKU          string            `json:"sku"`
	Model        int               `json:"model"`
	ModelCfg     int               `json:"model_cfg"`
	Firmware     string            `json:"firmware"`
	Family       string            `json:"family"`
	Network      string            `json:"network"`
	DiscoveredAt time.Time         `json:"discovered_at"`
	LastSeen     time.Time         `json:"last_seen"`
	Energy       thermostat.Energy `json:"energy"`
	StatTime     time.Time         `json:"stat_time"`
}

// DisplayName returns the friendly name when set.
func (d *Device) DisplayName() string {
	if d.FriendlyName != "" {
		return d.FriendlyName
	}
	return d.Name
}

// sessionStorage is the on-disk form of a Neviweb session. The session id
// never leaves the store through the API types.
type sessionStorage struct {
	AccountID int       `json:"account_id"`
	ID        string    `json:"session_id,omitempty"`
	SavedAt   time.Time `json:"saved_at"`
}
