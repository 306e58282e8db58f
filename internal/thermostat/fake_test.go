package thermostat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"neviweb-go-home/internal/neviweb"
)

// fakeClient records every call and serves canned responses.
type fakeClient struct {
	mu    sync.Mutex
	calls []string

	attrs     neviweb.Attributes
	attrsErr  error
	hourly    []neviweb.StatEntry
	daily     []neviweb.StatEntry
	monthly   []neviweb.StatEntry
	sensor    map[string]any
	setterErr error

	// block, when set, holds GetDeviceAttributes until it is closed.
	block chan struct{}
}

func (f *fakeClient) record(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeClient) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeClient) count(prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (f *fakeClient) GetDeviceAttributes(_ context.Context, id int, _ []string) (neviweb.Attributes, error) {
	f.record("GetDeviceAttributes %d", id)
	if f.block != nil {
		<-f.block
	}
	return f.attrs, f.attrsErr
}

func (f *fakeClient) HourlyStats(_ context.Context, id int) ([]neviweb.StatEntry, error) {
	f.record("HourlyStats %d", id)
	return f.hourly, nil
}

func (f *fakeClient) DailyStats(_ context.Context, id int) ([]neviweb.StatEntry, error) {
	f.record("DailyStats %d", id)
	return f.daily, nil
}

func (f *fakeClient) MonthlyStats(_ context.Context, id int) ([]neviweb.StatEntry, error) {
	f.record("MonthlyStats %d", id)
	return f.monthly, nil
}

func (f *fakeClient) SensorError(_ context.Context, id int) (map[string]any, error) {
	f.record("SensorError %d", id)
	return f.sensor, nil
}

func (f *fakeClient) Reconnect(context.Context) error {
	f.record("Reconnect")
	return nil
}

func (f *fakeClient) SetSetpointMode(_ context.Context, _ int, mode string, wifi bool) error {
	f.record("SetSetpointMode %s %v", mode, wifi)
	return f.setterErr
}

func (f *fakeClient) SetOccupancyMode(_ context.Context, _ int, mode string) error {
	f.record("SetOccupancyMode %s", mode)
	return f.setterErr
}

func (f *fakeClient) SetTemperature(_ context.Context, _ int, temp float64) error {
	f.record("SetTemperature %g", temp)
	return f.setterErr
}

func (f *fakeClient) SetSecondDisplay(_ context.Context, _ int, display string) error {
	f.record("SetSecondDisplay %s", display)
	return f.setterErr
}

func (f *fakeClient) SetBacklight(_ context.Context, _ int, level string, wifi bool) error {
	f.record("SetBacklight %s %v", level, wifi)
	return f.setterErr
}

func (f *fakeClient) SetKeypadLock(_ context.Context, _ int, lock string, wifi bool) error {
	f.record("SetKeypadLock %s %v", lock, wifi)
	return f.setterErr
}

func (f *fakeClient) SetTimeFormat(_ context.Context, _ int, format string) error {
	f.record("SetTimeFormat %s", format)
	return f.setterErr
}

func (f *fakeClient) SetTemperatureFormat(_ context.Context, _ int, format string) error {
	f.record("SetTemperatureFormat %s", format)
	return f.setterErr
}

func (f *fakeClient) SetAirFloorMode(_ context.Context, _ int, mode string) error {
	f.record("SetAirFloorMode %s", mode)
	return f.setterErr
}

func (f *fakeClient) SetSetpointMax(_ context.Context, _ int, temp float64) error {
	f.record("SetSetpointMax %g", temp)
	return f.setterErr
}

func (f *fakeClient) SetSetpointMin(_ context.Context, _ int, temp float64) error {
	f.record("SetSetpointMin %g", temp)
	return f.setterErr
}

func (f *fakeClient) SetCoolSetpointMax(_ context.Context, _ int, temp float64) error {
	f.record("SetCoolSetpointMax %g", temp)
	return f.setterErr
}

func (f *fakeClient) SetCoolSetpointMin(_ context.Context, _ int, temp float64) error {
	f.record("SetCoolSetpointMin %g", temp)
	return f.setterErr
}

func (f *fakeClient) SetFloorAirLimit(_ context.Context, _ int, status string, temp float64) error {
	f.record("SetFloorAirLimit %s %g", status, temp)
	return f.setterErr
}

func (f *fakeClient) SetEarlyStart(_ context.Context, _ int, start string) error {
	f.record("SetEarlyStart %s", start)
	return f.setterErr
}

func (f *fakeClient) SetHvacDROptions(_ context.Context, _ int, dr, optOut, setpoint string) error {
	f.record("SetHvacDROptions %s %s %s", dr, optOut, setpoint)
	return f.setterErr
}

func (f *fakeClient) SetHvacDRSetpoint(_ context.Context, _ int, status string, value float64) error {
	f.record("SetHvacDRSetpoint %s %g", status, value)
	return f.setterErr
}

func (f *fakeClient) SetAuxHeat(_ context.Context, _ int, value string, kind neviweb.AuxKind, seconds int) error {
	f.record("SetAuxHeat %s %s %d", value, kind, seconds)
	return f.setterErr
}

func (f *fakeClient) SetAuxiliaryLoad(_ context.Context, _ int, status string, load float64) error {
	f.record("SetAuxiliaryLoad %s %g", status, load)
	return f.setterErr
}

func (f *fakeClient) SetAuxCycleOutput(_ context.Context, _ int, status string, seconds int) error {
	f.record("SetAuxCycleOutput %s %d", status, seconds)
	return f.setterErr
}

func (f *fakeClient) SetCycleOutput(_ context.Context, _ int, seconds int) error {
	f.record("SetCycleOutput %d", seconds)
	return f.setterErr
}

func (f *fakeClient) SetPumpProtection(_ context.Context, _ int, status string, lowWifi bool) error {
	f.record("SetPumpProtection %s %v", status, lowWifi)
	return f.setterErr
}

func (f *fakeClient) SetSensorType(_ context.Context, _ int, sensor string) error {
	f.record("SetSensorType %s", sensor)
	return f.setterErr
}

func (f *fakeClient) SetFloorLimit(_ context.Context, _ int, temp float64, high bool) error {
	f.record("SetFloorLimit %g %v", temp, high)
	return f.setterErr
}

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, msg string) {
	n.messages = append(n.messages, msg)
}

// fakeClock is a settable clock.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func attrsFromJSON(s string) neviweb.Attributes {
	var a neviweb.Attributes
	if err := json.Unmarshal([]byte(s), &a); err != nil {
		panic(err)
	}
	return a
}

func newTestThermostat(model int, sku string, client *fakeClient, clock *fakeClock, notifier Notifier) *Thermostat {
	info := neviweb.DeviceInfo{
		ID:   100,
		Name: "Living",
		SKU:  sku,
		Signature: &neviweb.Signature{
			Model:       model,
			SoftVersion: neviweb.SoftVersion{Major: 1, Middle: 2, Minor: 3},
		},
	}
	t, err := New(info, "neviweb130 climate Living", client, Options{Now: clock.Now, Notifier: notifier})
	if err != nil {
		panic(err)
	}
	return t
}
