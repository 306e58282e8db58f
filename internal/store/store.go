package store

import (
	"errors"

	"neviweb-go-home/internal/neviweb"
)

// ErrNotFound is returned when a requested entity does not exist in the store.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface.
type Store interface {
	// Device operations
	SaveDevice(dev *Device) error
	GetDevice(id int) (*Device, error)
	DeleteDevice(id int) error
	ListDevices() ([]*Device, error)

	// UpdateDevice atomically reads, modifies, and saves a device in a single
	// transaction. Returns ErrNotFound if the device does not exist.
	UpdateDevice(id int, fn func(dev *Device) error) error

	// Neviweb session, so restarts reuse it instead of opening a new one.
	LoadSession() (neviweb.Session, error)
	SaveSession(neviweb.Session) error

	// Close the store
	Close() error
}
