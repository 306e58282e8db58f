package thermostat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"neviweb-go-home/internal/neviweb"
)

const (
	// SnoozeTime is how long polling stays halted after DVCUNVLB.
	SnoozeTime = 1200 * time.Second
	// DefaultStatInterval is the default gap between energy stat fetches.
	DefaultStatInterval = 1800 * time.Second
	// initialStatLag backdates the first stat fetch so it runs soon after start.
	initialStatLag = 1500 * time.Second

	// skuNoStats has no energy history on Neviweb.
	skuNoStats = "FLP55"
)

// ErrUnsupported is returned for device models without a family.
var ErrUnsupported = errors.New("unsupported thermostat model")

// Client is the part of the Neviweb API a thermostat uses.
type Client interface {
	GetDeviceAttributes(ctx context.Context, id int, names []string) (neviweb.Attributes, error)
	HourlyStats(ctx context.Context, id int) ([]neviweb.StatEntry, error)
	DailyStats(ctx context.Context, id int) ([]neviweb.StatEntry, error)
	MonthlyStats(ctx context.Context, id int) ([]neviweb.StatEntry, error)
	SensorError(ctx context.Context, id int) (map[string]any, error)
	Reconnect(ctx context.Context) error

	SetSetpointMode(ctx context.Context, id int, mode string, wifi bool) error
	SetOccupancyMode(ctx context.Context, id int, mode string) error
	SetTemperature(ctx context.Context, id int, temp float64) error
	SetSecondDisplay(ctx context.Context, id int, display string) error
	SetBacklight(ctx context.Context, id int, level string, wifi bool) error
	SetKeypadLock(ctx context.Context, id int, lock string, wifi bool) error
	SetTimeFormat(ctx context.Context, id int, format string) error
	SetTemperatureFormat(ctx context.Context, id int, format string) error
	SetAirFloorMode(ctx context.Context, id int, mode string) error
	SetSetpointMax(ctx context.Context, id int, temp float64) error
	SetSetpointMin(ctx context.Context, id int, temp float64) error
	SetCoolSetpointMax(ctx context.Context, id int, temp float64) error
	SetCoolSetpointMin(ctx context.Context, id int, temp float64) error
	SetFloorAirLimit(ctx context.Context, id int, status string, temp float64) error
	SetEarlyStart(ctx context.Context, id int, start string) error
	SetHvacDROptions(ctx context.Context, id int, drActive, optOut, setpoint string) error
	SetHvacDRSetpoint(ctx context.Context, id int, status string, value float64) error
	SetAuxHeat(ctx context.Context, id int, value string, kind neviweb.AuxKind, seconds int) error
	SetAuxiliaryLoad(ctx context.Context, id int, status string, load float64) error
	SetAuxCycleOutput(ctx context.Context, id int, status string, seconds int) error
	SetCycleOutput(ctx context.Context, id int, seconds int) error
	SetPumpProtection(ctx context.Context, id int, status string, lowWifi bool) error
	SetSensorType(ctx context.Context, id int, sensor string) error
	SetFloorLimit(ctx context.Context, id int, temp float64, high bool) error
}

// Notifier delivers user-facing notifications.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// Options configure a Thermostat.
type Options struct {
	StatInterval time.Duration
	HomekitMode  bool
	Notifier     Notifier
	Logger       *slog.Logger
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
	// OnError is called with every vendor error code seen while polling.
	OnError func(code string)
}

// Thermostat is one Neviweb climate device.
type Thermostat struct {
	id       int
	name     string
	sku      string
	model    int
	modelCfg int
	firmware string
	family   *Family

	client       Client
	notifier     Notifier
	logger       *slog.Logger
	now          func() time.Time
	onError      func(code string)
	statInterval time.Duration
	homekit      bool

	// Serialises Update so a manual poll cannot overlap the poll loop.
	pollMu sync.Mutex

	mu       sync.Mutex
	state    State
	active   bool
	held     bool
	snooze   time.Time
	statTime time.Time
	lastPoll time.Time
}

// New creates a thermostat from a discovery entry.
func New(info neviweb.DeviceInfo, name string, client Client, opts Options) (*Thermostat, error) {
	if info.Signature == nil {
		return nil, fmt.Errorf("device %d: %w: no signature", info.ID, ErrUnsupported)
	}
	family := FamilyForModel(info.Signature.Model)
	if family == nil {
		return nil, fmt.Errorf("device %d model %d: %w", info.ID, info.Signature.Model, ErrUnsupported)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.StatInterval <= 0 {
		opts.StatInterval = DefaultStatInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	t := &Thermostat{
		id:           info.ID,
		name:         name,
		sku:          info.SKU,
		model:        info.Signature.Model,
		modelCfg:     info.Signature.ModelCfg,
		firmware:     info.Signature.SoftVersion.String(),
		family:       family,
		client:       client,
		notifier:     opts.Notifier,
		now:          opts.Now,
		onError:      opts.OnError,
		statInterval: opts.StatInterval,
		homekit:      opts.HomekitMode,
		state:        initialState(),
		active:       true,
	}
	t.statTime = t.now().Add(-initialStatLag)
	t.logger = opts.Logger.With("device", name, "sku", t.sku)
	t.logger.Debug("thermostat created", "id", t.id, "family", family.Name, "model", t.model)
	return t, nil
}

func (t *Thermostat) ID() int            { return t.id }
func (t *Thermostat) Name() string       { return t.name }
func (t *Thermostat) SKU() string        { return t.sku }
func (t *Thermostat) Model() int         { return t.model }
func (t *Thermostat) ModelCfg() int      { return t.modelCfg }
func (t *Thermostat) Firmware() string   { return t.firmware }
func (t *Thermostat) Family() *Family    { return t.family }
func (t *Thermostat) Caps() Capabilities { return t.family.Caps }

// Active reports whether polling is enabled.
func (t *Thermostat) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// State returns a copy of the current state.
func (t *Thermostat) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.clone()
}

// LastPoll returns the time of the last attribute fetch.
func (t *Thermostat) LastPoll() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastPoll
}

// StatTime returns when energy stats were last fetched.
func (t *Thermostat) StatTime() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statTime
}

// RestoreEnergy seeds the energy cache from persisted values.
func (t *Thermostat) RestoreEnergy(e Energy, fetchedAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Energy = e
	if !fetchedAt.IsZero() {
		t.statTime = fetchedAt
	}
}

// Update polls the device and maps the response onto the state. It reports
// whether a vendor call was made. Errors are logged, never returned.
func (t *Thermostat) Update(ctx context.Context) bool {
	t.pollMu.Lock()
	defer t.pollMu.Unlock()
	start := t.now()

	t.mu.Lock()
	if !t.active {
		restart := !t.held && start.Sub(t.snooze) > SnoozeTime
		if restart {
			t.active = true
		}
		t.mu.Unlock()
		if restart {
			t.logger.Info("device update restarted")
			t.notify(ctx, fmt.Sprintf("Warning: Neviweb Device update restarted for %s, Sku: %s", t.name, t.sku))
		}
		return false
	}
	t.mu.Unlock()

	attrs, err := t.client.GetDeviceAttributes(ctx, t.id, t.family.Attributes())
	t.logger.Debug("device updated", "elapsed", t.now().Sub(start), "attributes", len(attrs))
	var apiErr *neviweb.APIError
	switch {
	case errors.As(err, &apiErr):
		t.handleError(ctx, apiErr.Code)
	case err != nil:
		t.logger.Warn("error updating device", "err", err)
	default:
		if code, ok := attrs.ErrorCode(); ok {
			if code == neviweb.ReadTimeout {
				t.logger.Warn("timeout during data update, device did not respond, check your network", "code", code)
			} else {
				t.logger.Warn("error in updating device", "code", code)
			}
			break
		}
		t.apply(attrs)
	}

	if t.sku != skuNoStats {
		t.fetchStats(ctx, start)
	}
	if !t.family.Caps.Wifi && !t.family.Caps.HC {
		t.fetchSensorErrors(ctx)
	}
	return true
}

func (t *Thermostat) apply(attrs neviweb.Attributes) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, f := range t.family.fields {
		raw, ok := attrs[f.attr]
		if !ok {
			if !f.optional {
				t.logger.Warn("missing attribute in response", "attribute", f.attr)
			}
			continue
		}
		if err := f.apply(&t.state, raw); err != nil {
			t.logger.Warn("cannot decode attribute", "attribute", f.attr, "err", err)
		}
	}
	t.lastPoll = t.now()
}

// handleError applies the action for a vendor error code.
func (t *Thermostat) handleError(ctx context.Context, code string) {
	if t.onError != nil {
		t.onError(code)
	}
	switch Classify(code) {
	case ErrorSessionExpired:
		t.logger.Warn("session expired, reconnecting")
		t.reconnect(ctx)
	case ErrorSessionLimit:
		t.logger.Warn("maximum session number reached, close other connections and try again")
		t.notify(ctx, "Warning: Maximum Neviweb session number reached...Close other connections and try again.")
		t.reconnect(ctx)
	case ErrorAttributeUnsupported:
		t.logger.Warn("device attribute not supported")
	case ErrorActionUnsupported:
		t.logger.Warn("device action not supported, report to maintainer")
	case ErrorCommTimeout:
		t.logger.Warn("device communication timeout, the device did not respond to the server in time")
	case ErrorService:
		t.logger.Warn("service error, device not available, retry later")
	case ErrorBusy:
		t.logger.Warn("device busy, retry later")
	case ErrorUnavailable:
		t.logger.Warn("device is disconnected from Neviweb")
		t.logger.Warn("device de-activated, no update for 20 minutes; re-activate with set_activation or restart")
		t.mu.Lock()
		t.active = false
		t.snooze = t.now()
		t.mu.Unlock()
		t.notify(ctx, fmt.Sprintf("Warning: Received message from Neviweb, device disconnected... Check your log... "+
			"Neviweb update will be halted for 20 minutes for %s, Sku: %s", t.name, t.sku))
	case ErrorDevice:
		t.logger.Warn("device error, service already active")
	case ErrorUnauthorized:
		t.logger.Warn("service not authorised for device")
	default:
		t.logger.Warn("unknown error, report to maintainer", "code", code)
	}
}

func (t *Thermostat) reconnect(ctx context.Context) {
	if err := t.client.Reconnect(ctx); err != nil {
		t.logger.Error("reconnect failed", "err", err)
	}
}

func (t *Thermostat) notify(ctx context.Context, msg string) {
	if t.notifier != nil {
		t.notifier.Notify(ctx, msg)
	}
}

// fetchStats refreshes the energy cache when the stat interval has elapsed.
func (t *Thermostat) fetchStats(ctx context.Context, start time.Time) {
	t.mu.Lock()
	due := start.Sub(t.statTime) > t.statInterval
	t.mu.Unlock()
	if !due {
		return
	}

	var e Energy
	t.mu.Lock()
	e = t.state.Energy
	t.mu.Unlock()

	if entry, ok := t.statEntry(ctx, "hourly", t.client.HourlyStats, 1); ok {
		e.HourlyCount, e.HourlyKWh = kwh(entry.Counter), kwh(entry.Period)
	}
	if entry, ok := t.statEntry(ctx, "daily", t.client.DailyStats, 0); ok {
		e.DailyCount, e.DailyKWh = kwh(entry.Counter), kwh(entry.Period)
	}
	if entry, ok := t.statEntry(ctx, "monthly", t.client.MonthlyStats, 0); ok {
		e.MonthlyCount, e.MonthlyKWh = kwh(entry.Counter), kwh(entry.Period)
	}

	t.mu.Lock()
	t.state.Energy = e
	t.statTime = t.now()
	t.mu.Unlock()
}

func (t *Thermostat) statEntry(ctx context.Context, period string,
	fetch func(context.Context, int) ([]neviweb.StatEntry, error), index int) (neviweb.StatEntry, bool) {
	entries, err := fetch(ctx, t.id)
	if err != nil {
		t.logger.Warn("energy stats fetch failed", "period", period, "err", err)
		return neviweb.StatEntry{}, false
	}
	if len(entries) <= 1 {
		t.logger.Warn("got no data for energy stats", "period", period)
		return neviweb.StatEntry{}, false
	}
	return entries[index], true
}

func kwh(wh float64) *float64 {
	v := wh / 1000
	return &v
}

// fetchSensorErrors reads the errorCodeSet1 keys that apply to the family.
func (t *Thermostat) fetchSensorErrors(ctx context.Context) {
	codes, err := t.client.SensorError(ctx, t.id)
	if err != nil {
		t.logger.Warn("sensor error code fetch failed", "err", err)
		return
	}
	if len(codes) == 0 {
		return
	}
	t.logger.Warn("error code set1 updated", "codes", codes)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.SensorCodes == nil {
		t.state.SensorCodes = make(map[string]any)
	}
	for _, key := range t.family.sensorCodes {
		if v, ok := codes[key]; ok {
			t.state.SensorCodes[key] = v
		}
	}
}
