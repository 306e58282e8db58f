package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"neviweb-go-home/internal/neviweb"
	"neviweb-go-home/internal/store"
	"neviweb-go-home/internal/thermostat"
)

// DefaultScanInterval is the Neviweb poll period. Neviweb throttles accounts
// that poll faster.
const DefaultScanInterval = 540 * time.Second

// Device names are the network prefix followed by the Neviweb device name.
const namePrefix = "neviweb130 climate"

var (
	ErrUnknownDevice   = errors.New("unknown device")
	ErrUnknownService  = errors.New("unknown service")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotSupported    = errors.New("service not supported by device")
)

// Client is the Neviweb API used by the coordinator.
type Client interface {
	thermostat.Client
	Login(ctx context.Context) error
	Locations(ctx context.Context) ([]neviweb.Location, error)
	Devices(ctx context.Context, locationID int) ([]neviweb.DeviceInfo, error)
}

// Config holds coordinator configuration.
type Config struct {
	ScanInterval time.Duration
	StatInterval time.Duration
	HomekitMode  bool
	Notifier     thermostat.Notifier
	Now          func() time.Time
}

// Snapshot is a device as presented to MQTT, the API and scripts.
type Snapshot struct {
	thermostat.View
	FriendlyName string `json:"friendly_name,omitempty"`
	Network      string `json:"network"`
}

// DisplayName returns the friendly name when set.
func (s Snapshot) DisplayName() string {
	if s.FriendlyName != "" {
		return s.FriendlyName
	}
	return s.Name
}

// PollStats counts polls and vendor errors since start.
type PollStats struct {
	Polls  uint64            `json:"polls"`
	Errors map[string]uint64 `json:"errors"`
}

type entry struct {
	th           *thermostat.Thermostat
	network      string
	friendlyName string
	deviceName   string // name on Neviweb, without the entity prefix
}

// Coordinator discovers the Neviweb thermostats and polls them.
type Coordinator struct {
	client Client
	store  store.Store
	events *EventBus
	logger *slog.Logger
	config Config

	mu       sync.RWMutex
	devices  map[int]*entry
	order    []int
	networks []neviweb.Location

	statsMu sync.Mutex
	stats   PollStats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Coordinator.
func New(client Client, st store.Store, events *EventBus, cfg Config, logger *slog.Logger) *Coordinator {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = DefaultScanInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		client:  client,
		store:   st,
		events:  events,
		logger:  logger.With("component", "coordinator"),
		config:  cfg,
		devices: make(map[int]*entry),
		stats:   PollStats{Errors: make(map[string]uint64)},
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Context returns the coordinator's context, which is cancelled on Stop().
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// Start discovers devices and starts the poll loop. The first poll runs
// immediately.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.Discover(ctx); err != nil {
		return err
	}
	c.events.Emit(Event{Type: EventBridgeState, Data: "online"})

	c.wg.Add(1)
	go c.loop()
	return nil
}

// Stop cancels the poll loop and waits for it.
func (c *Coordinator) Stop() {
	c.cancel()
	c.wg.Wait()
}

func (c *Coordinator) loop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.config.ScanInterval)
	defer ticker.Stop()

	c.PollAll(c.ctx)
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.PollAll(c.ctx)
		}
	}
}

// Discover logs in, lists the configured networks and creates a thermostat
// for every supported device. Unsupported models are skipped.
func (c *Coordinator) Discover(ctx context.Context) error {
	if err := c.client.Login(ctx); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	locations, err := c.client.Locations(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.networks = locations
	c.mu.Unlock()

	for i, loc := range locations {
		infos, err := c.client.Devices(ctx, loc.ID)
		if err != nil {
			return fmt.Errorf("network %q: %w", loc.Name, err)
		}
		prefix := namePrefix
		if i > 0 {
			prefix = fmt.Sprintf("%s %d", namePrefix, i+1)
		}
		c.logger.Info("network", "name", loc.Name, "id", loc.ID, "devices", len(infos))
		for _, info := range infos {
			c.addDevice(info, prefix+" "+info.Name, loc.Name)
		}
	}
	c.prune()
	c.logger.Info("discovery complete", "thermostats", len(c.order))
	return nil
}

// prune drops stored devices that are no longer on the account.
func (c *Coordinator) prune() {
	stored, err := c.store.ListDevices()
	if err != nil {
		c.logger.Error("list stored devices", "err", err)
		return
	}
	for _, dev := range stored {
		c.mu.RLock()
		_, ok := c.devices[dev.ID]
		c.mu.RUnlock()
		if ok {
			continue
		}
		if err := c.store.DeleteDevice(dev.ID); err != nil {
			c.logger.Error("delete device", "id", dev.ID, "err", err)
			continue
		}
		c.logger.Info("device removed", "id", dev.ID, "name", dev.DisplayName())
		c.events.Emit(Event{Type: EventDeviceRemoved, Data: map[string]any{
			"id":   dev.ID,
			"name": dev.DisplayName(),
		}})
	}
}

func (c *Coordinator) addDevice(info neviweb.DeviceInfo, name, network string) {
	th, err := thermostat.New(info, name, c.client, thermostat.Options{
		StatInterval: c.config.StatInterval,
		HomekitMode:  c.config.HomekitMode,
		Notifier:     c.config.Notifier,
		Logger:       c.logger,
		Now:          c.config.Now,
		OnError:      c.countError,
	})
	if errors.Is(err, thermostat.ErrUnsupported) {
		c.logger.Debug("skipping device", "id", info.ID, "name", info.Name, "sku", info.SKU)
		return
	}
	if err != nil {
		c.logger.Error("create thermostat", "id", info.ID, "err", err)
		return
	}

	now := c.config.Now()
	dev, err := c.store.GetDevice(info.ID)
	if err == nil {
		th.RestoreEnergy(dev.Energy, dev.StatTime)
	} else {
		dev = &store.Device{ID: info.ID, DiscoveredAt: now}
	}
	dev.Name = name
	dev.SKU = th.SKU()
	dev.Model = th.Model()
	dev.ModelCfg = th.ModelCfg()
	dev.Firmware = th.Firmware()
	dev.Family = th.Family().Name
	dev.Network = network
	if err := c.store.SaveDevice(dev); err != nil {
		c.logger.Error("save device", "id", info.ID, "err", err)
	}

	c.mu.Lock()
	if _, exists := c.devices[info.ID]; !exists {
		c.order = append(c.order, info.ID)
	}
	c.devices[info.ID] = &entry{th: th, network: network, friendlyName: dev.FriendlyName, deviceName: info.Name}
	c.mu.Unlock()

	c.logger.Info("thermostat discovered", "id", info.ID, "name", name, "sku", th.SKU(),
		"family", th.Family().Name, "firmware", th.Firmware())
	c.events.Emit(Event{Type: EventDeviceDiscovered, Data: c.snapshot(info.ID)})
}

func (c *Coordinator) countError(code string) {
	c.statsMu.Lock()
	c.stats.Errors[code]++
	c.statsMu.Unlock()
}

// PollAll updates every device in discovery order.
func (c *Coordinator) PollAll(ctx context.Context) {
	c.mu.RLock()
	ids := append([]int(nil), c.order...)
	c.mu.RUnlock()

	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		if err := c.Poll(ctx, id); err != nil {
			c.logger.Warn("poll", "id", id, "err", err)
		}
	}
}

// Poll updates one device, persists its energy cache and publishes the new
// state. Vendor errors are handled by the thermostat, not returned.
func (c *Coordinator) Poll(ctx context.Context, id int) error {
	e, err := c.entry(id)
	if err != nil {
		return err
	}
	if e.th.Update(ctx) {
		c.statsMu.Lock()
		c.stats.Polls++
		c.statsMu.Unlock()
	}
	c.persist(e.th)
	c.events.Emit(Event{Type: EventStateUpdate, Data: c.snapshot(id)})
	return nil
}

func (c *Coordinator) persist(th *thermostat.Thermostat) {
	st := th.State()
	err := c.store.UpdateDevice(th.ID(), func(dev *store.Device) error {
		dev.Energy = st.Energy
		dev.StatTime = th.StatTime()
		if lp := th.LastPoll(); !lp.IsZero() {
			dev.LastSeen = lp
		}
		return nil
	})
	if err != nil {
		c.logger.Error("persist device", "id", th.ID(), "err", err)
	}
}

func (c *Coordinator) entry(id int) (*entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.devices[id]
	if !ok {
		return nil, fmt.Errorf("device %d: %w", id, ErrUnknownDevice)
	}
	return e, nil
}

// Thermostat returns the thermostat with the given id.
func (c *Coordinator) Thermostat(id int) (*thermostat.Thermostat, error) {
	e, err := c.entry(id)
	if err != nil {
		return nil, err
	}
	return e.th, nil
}

func (c *Coordinator) snapshot(id int) Snapshot {
	c.mu.RLock()
	e := c.devices[id]
	c.mu.RUnlock()
	return Snapshot{View: e.th.View(), FriendlyName: e.friendlyName, Network: e.network}
}

// Device returns the snapshot of one device.
func (c *Coordinator) Device(id int) (Snapshot, error) {
	if _, err := c.entry(id); err != nil {
		return Snapshot{}, err
	}
	return c.snapshot(id), nil
}

// Devices returns snapshots of every device in discovery order.
func (c *Coordinator) Devices() []Snapshot {
	c.mu.RLock()
	ids := append([]int(nil), c.order...)
	c.mu.RUnlock()

	out := make([]Snapshot, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.snapshot(id))
	}
	return out
}

// Resolve finds a device by numeric id, entity name, Neviweb name, friendly
// name or slug. Devices are searched in discovery order.
func (c *Coordinator) Resolve(ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.Atoi(ref); err == nil {
		if _, err := c.entry(id); err == nil {
			return id, nil
		}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range c.order {
		e := c.devices[id]
		name := e.th.Name()
		if strings.EqualFold(ref, name) || strings.EqualFold(ref, e.deviceName) ||
			strings.EqualFold(ref, e.friendlyName) ||
			ref == Slug(name) || (e.friendlyName != "" && ref == Slug(e.friendlyName)) {
			return id, nil
		}
	}
	return 0, fmt.Errorf("device %q: %w", ref, ErrUnknownDevice)
}

// Rename sets the friendly name of a device. An empty name clears it.
func (c *Coordinator) Rename(id int, friendlyName string) error {
	e, err := c.entry(id)
	if err != nil {
		return err
	}
	friendlyName = strings.TrimSpace(friendlyName)
	err = c.store.UpdateDevice(id, func(dev *store.Device) error {
		dev.FriendlyName = friendlyName
		return nil
	})
	if err != nil {
		return fmt.Errorf("rename device %d: %w", id, err)
	}
	c.mu.Lock()
	old := e.friendlyName
	e.friendlyName = friendlyName
	c.mu.Unlock()

	c.logger.Info("device renamed", "id", id, "from", old, "to", friendlyName)
	c.events.Emit(Event{Type: EventDeviceRenamed, Data: map[string]any{
		"id":       id,
		"old_name": old,
		"device":   c.snapshot(id),
	}})
	return nil
}

// Networks returns the selected Neviweb locations.
func (c *Coordinator) Networks() []neviweb.Location {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]neviweb.Location(nil), c.networks...)
}

// NetworkInfo summarises the bridge for the API.
func (c *Coordinator) NetworkInfo() map[string]any {
	c.mu.RLock()
	count := len(c.order)
	c.mu.RUnlock()
	return map[string]any{
		"networks":      c.Networks(),
		"devices":       count,
		"scan_interval": c.config.ScanInterval.Seconds(),
		"homekit_mode":  c.config.HomekitMode,
		"stats":         c.Stats(),
	}
}

// Stats returns a copy of the poll counters.
func (c *Coordinator) Stats() PollStats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	errs := make(map[string]uint64, len(c.stats.Errors))
	for k, v := range c.stats.Errors {
		errs[k] = v
	}
	return PollStats{Polls: c.stats.Polls, Errors: errs}
}

// Store returns the store.
func (c *Coordinator) Store() store.Store {
	return c.store
}

// Events returns the event bus.
func (c *Coordinator) Events() *EventBus {
	return c.events
}

// Slug turns a device name into a topic and script friendly identifier.
func Slug(name string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			underscore = false
		case !underscore && b.Len() > 0:
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
