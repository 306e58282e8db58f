package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"

	"neviweb-go-home/internal/neviweb"
)

var (
	bucketDevices = []byte("devices")
	bucketSession = []byte("session")
	keySession    = []byte("current")
)

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates a BoltDB database.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketDevices, bucketSession} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func deviceKey(id int) []byte {
	return []byte(strconv.Itoa(id))
}

func (s *BoltStore) SaveDevice(dev *Device) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDevices)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketDevices)
		}
		data, err := json.Marshal(dev)
		if err != nil {
			return err
		}
		return b.Put(deviceKey(dev.ID), data)
	})
}

func (s *BoltStore) GetDevice(id int) (*Device, error) {
	var dev Device
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDevices)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketDevices)
		}
		data := b.Get(deviceKey(id))
		if data == nil {
			return fmt.Errorf("device %d: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &dev)
	})
	if err != nil {
		return nil, err
	}
	return &dev, nil
}

func (s *BoltStore) UpdateDevice(id int, fn func(dev *Device) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDevices)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketDevices)
		}
		data := b.Get(deviceKey(id))
		if data == nil {
			return fmt.Errorf("device %d: %w", id, ErrNotFound)
		}
		var dev Device
		if err := json.Unmarshal(data, &dev); err != nil {
			return err
		}
		if err := fn(&dev); err != nil {
			return err
		}
		data, err := json.Marshal(&dev)
		if err != nil {
			return err
		}
		return b.Put(deviceKey(id), data)
	})
}

func (s *BoltStore) DeleteDevice(id int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDevices)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketDevices)
		}
		return b.Delete(deviceKey(id))
	})
}

func (s *BoltStore) ListDevices() ([]*Device, error) {
	var devices []*Device
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDevices)
		if b == nil {
			return nil // no bucket = no devices
		}
		devices = make([]*Device, 0, b.Stats().KeyN)
		return b.ForEach(func(k, v []byte) error {
			var dev Device
			if err := json.Unmarshal(v, &dev); err != nil {
				return err
			}
			devices = append(devices, &dev)
			return nil
		})
	})
	return devices, err
}

// SaveSession implements neviweb.SessionStore.
func (s *BoltStore) SaveSession(session neviweb.Session) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSession)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketSession)
		}
		data, err := json.Marshal(sessionStorage{
			AccountID: session.AccountID,
			ID:        session.ID,
			SavedAt:   time.Now(),
		})
		if err != nil {
			return err
		}
		return b.Put(keySession, data)
	})
}

// LoadSession implements neviweb.SessionStore.
func (s *BoltStore) LoadSession() (neviweb.Session, error) {
	var session neviweb.Session
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSession)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketSession)
		}
		data := b.Get(keySession)
		if data == nil {
			return fmt.Errorf("session: %w", ErrNotFound)
		}
		var st sessionStorage
		if err := json.Unmarshal(data, &st); err != nil {
			return err
		}
		session = neviweb.Session{AccountID: st.AccountID, ID: st.ID}
		return nil
	})
	return session, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
