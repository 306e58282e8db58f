package thermostat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"neviweb-go-home/internal/neviweb"
)

const heatPayload = `{
	"roomTemperature": {"value": 21.5},
	"roomSetpoint": "22.0",
	"roomSetpointMin": 5,
	"roomSetpointMax": 30,
	"temperatureFormat": "celsius",
	"timeFormat": "24h",
	"roomTemperatureDisplay": "display_value",
	"config2ndDisplay": "outsideTemperature",
	"drSetpoint": {"status": "on", "value": null},
	"drStatus": {"drActive": "on", "optOut": "off", "setpoint": "on", "powerAbsolute": "off", "powerRelative": "off"},
	"outputPercentDisplay": 50,
	"lockKeypad": "unlocked",
	"backlightAdaptive": "always",
	"cycleLength": 900,
	"rssi": -60,
	"systemMode": "heat",
	"loadConnected": 1000
}`

func TestFamilyFlags(t *testing.T) {
	tests := []struct {
		model int
		name  string
		want  Capabilities
	}{
		{1123, "heat", Capabilities{}},
		{1124, "heat", Capabilities{}},
		{300, "heat_g2", Capabilities{Gen2: true}},
		{737, "floor", Capabilities{Floor: true}},
		{7372, "low_voltage", Capabilities{LowVoltage: true}},
		{7373, "double", Capabilities{Double: true}},
		{1510, "wifi", Capabilities{Wifi: true}},
		{742, "wifi", Capabilities{Wifi: true}},
		{739, "low_wifi", Capabilities{Wifi: true, LowWifi: true}},
		{738, "wifi_floor", Capabilities{Wifi: true, WifiFloor: true}},
		{1134, "hc", Capabilities{HC: true}},
	}
	for _, tt := range tests {
		f := FamilyForModel(tt.model)
		if f == nil {
			t.Fatalf("model %d: no family", tt.model)
		}
		if f.Name != tt.name {
			t.Errorf("model %d: family = %q, want %q", tt.model, f.Name, tt.name)
		}
		if f.Caps != tt.want {
			t.Errorf("model %d: caps = %+v, want %+v", tt.model, f.Caps, tt.want)
		}
	}
	if FamilyForModel(9999) != nil {
		t.Error("unknown model should have no family")
	}
}

func TestFamilyAttributes(t *testing.T) {
	attrs := FamilyForModel(738).Attributes()
	seen := map[string]int{}
	for _, a := range attrs {
		seen[a]++
	}
	for a, n := range seen {
		if n > 1 {
			t.Errorf("attribute %q requested %d times", a, n)
		}
	}
	for _, want := range []string{"roomTemperature", "drStatus", "keyboardLock", "alertGfci"} {
		if seen[want] == 0 {
			t.Errorf("attribute %q missing", want)
		}
	}
}

func TestFamilySensorCodes(t *testing.T) {
	tests := []struct {
		model int
		want  []string
	}{
		{1123, []string{"compensationSensor", "thermalOverload", "wireSensor", "currentOverload", "endOfLife", "airSensor", "loadError", "referenceSensor"}},
		{737, []string{"compensationSensor", "thermalOverload", "floorSensor", "gfciBase", "wireSensor", "currentOverload", "endOfLife", "airSensor", "loadError", "referenceSensor"}},
		{7372, []string{"compensationSensor", "thermalOverload", "airSensor", "floorSensor", "loadError", "referenceSensor"}},
		{300, []string{"compensationSensor", "thermalOverload", "wireSensor", "currentOverload", "endOfLife", "airTopSensor", "airBottomSensor", "lineError", "inductiveMode"}},
	}
	for _, tt := range tests {
		got := FamilyForModel(tt.model).SensorCodes()
		if strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("model %d: codes = %v, want %v", tt.model, got, tt.want)
		}
	}
}

func TestUpdateMapsAttributes(t *testing.T) {
	client := &fakeClient{attrs: attrsFromJSON(heatPayload)}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	th := newTestThermostat(1123, "TH1123ZB", client, clock, nil)

	if !th.Update(context.Background()) {
		t.Fatal("Update made no vendor call")
	}
	st := th.State()

	if st.CurrentTemp == nil || *st.CurrentTemp != 21.5 {
		t.Errorf("current temp = %v, want 21.5", st.CurrentTemp)
	}
	if st.TargetTemp != 22 {
		t.Errorf("target = %v, want 22", st.TargetTemp)
	}
	if st.MinTemp != 5 || st.MaxTemp != 30 {
		t.Errorf("min/max = %v/%v", st.MinTemp, st.MaxTemp)
	}
	if st.DRSetpointStatus != "on" || st.DRSetpointValue != 0 {
		t.Errorf("dr setpoint = %q/%v, want on/0", st.DRSetpointStatus, st.DRSetpointValue)
	}
	if st.DRActive != "on" || st.DRSetpoint != "on" {
		t.Errorf("dr status = %q/%q", st.DRActive, st.DRSetpoint)
	}
	if st.HeatLevel != 50 || st.Wattage != 1000 || st.CycleLength != 900 {
		t.Errorf("heat=%v watt=%v cycle=%v", st.HeatLevel, st.Wattage, st.CycleLength)
	}
	if st.Keypad != "unlocked" || st.Backlight != "always" || st.OperationMode != "heat" {
		t.Errorf("keypad=%q backlight=%q mode=%q", st.Keypad, st.Backlight, st.OperationMode)
	}
	if st.TempDisplayValue != "display_value" {
		t.Errorf("temp display = %v", st.TempDisplayValue)
	}
	if st.RSSI != float64(-60) {
		t.Errorf("rssi = %v", st.RSSI)
	}
}

func TestUpdateNullTemperatureKeepsPrevious(t *testing.T) {
	client := &fakeClient{attrs: attrsFromJSON(heatPayload)}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	th := newTestThermostat(1123, "TH1123ZB", client, clock, nil)
	th.Update(context.Background())

	client.attrs = attrsFromJSON(strings.Replace(heatPayload, `{"value": 21.5}`, `{"value": null}`, 1))
	th.Update(context.Background())

	st := th.State()
	if st.CurrentTemp == nil || *st.CurrentTemp != 21.5 {
		t.Errorf("current temp = %v, want previous 21.5", st.CurrentTemp)
	}
}

func TestUpdateMissingOptionalFieldLeavesState(t *testing.T) {
	client := &fakeClient{attrs: attrsFromJSON(heatPayload)}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	th := newTestThermostat(1123, "TH1123ZB", client, clock, nil)
	th.Update(context.Background())

	client.attrs = attrsFromJSON(`{"roomSetpoint": 19, "roomTemperature": {"value": 20}}`)
	th.Update(context.Background())

	st := th.State()
	if st.TargetTemp != 19 {
		t.Errorf("target = %v, want 19", st.TargetTemp)
	}
	if st.CycleLength != 900 || st.Wattage != 1000 {
		t.Errorf("absent fields changed: cycle=%v watt=%v", st.CycleLength, st.Wattage)
	}
}

func TestUpdatePartialErrorKeepsState(t *testing.T) {
	client := &fakeClient{attrs: attrsFromJSON(heatPayload)}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	th := newTestThermostat(1123, "TH1123ZB", client, clock, nil)
	th.Update(context.Background())

	client.attrs = attrsFromJSON(`{"errorCode": "ReadTimeout", "roomSetpoint": 10}`)
	th.Update(context.Background())

	if got := th.State().TargetTemp; got != 22 {
		t.Errorf("target = %v, want unchanged 22", got)
	}
}

func TestUpdateWifiFamily(t *testing.T) {
	client := &fakeClient{attrs: attrsFromJSON(`{
		"roomTemperature": {"value": 19.5},
		"roomSetpoint": 20,
		"roomSetpointMin": 5,
		"roomSetpointMax": 30,
		"temperatureFormat": "celsius",
		"timeFormat": "12h",
		"config2ndDisplay": "default",
		"outputPercentDisplay": {"percent": 35, "sourceType": "heating"},
		"setpointMode": "auto",
		"occupancyMode": "away",
		"keyboardLock": "partialLock",
		"wifiRssi": -45,
		"backlightAutoDim": "onUserAction",
		"roomSetpointAway": 16,
		"loadWattOutput1": {"status": "on", "value": 1500},
		"roomTemperatureDisplay": {"status": "on", "value": 19.5}
	}`)}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	th := newTestThermostat(1510, "TH1123WF", client, clock, nil)
	th.Update(context.Background())

	v := th.View()
	if v.HeatLevel != 35 || v.HeatSourceType != "heating" {
		t.Errorf("heat = %v/%q", v.HeatLevel, v.HeatSourceType)
	}
	if v.HVACMode != "auto" || v.PresetMode != "away" {
		t.Errorf("mode = %q preset = %q", v.HVACMode, v.PresetMode)
	}
	if v.KeypadDisplay != "Tamper protection" {
		t.Errorf("keypad = %q", v.KeypadDisplay)
	}
	if v.TempDisplayStatus != "on" {
		t.Errorf("temp display status = %q", v.TempDisplayStatus)
	}
	if strings.Join(v.HVACModes, ",") != "auto,heat,off" {
		t.Errorf("hvac modes = %v", v.HVACModes)
	}
	if client.count("SensorError") != 0 {
		t.Error("wifi thermostat must not fetch sensor error codes")
	}
}

func TestUpdateFloorOutput2(t *testing.T) {
	payload := `{"loadWattOutput2": {"status": "off", "value": 500}, "floorMaxAirTemperature": {"status": "on", "value": 28},
		"floorLimitHigh": {"status": "on", "value": 30}}`
	client := &fakeClient{attrs: attrsFromJSON(payload)}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	th := newTestThermostat(737, "TH1300ZB", client, clock, nil)
	th.Update(context.Background())

	st := th.State()
	if st.Load2 != 0 || st.Load2Status != "off" {
		t.Errorf("load2 = %v/%q, want 0/off", st.Load2, st.Load2Status)
	}
	if st.FloorAirLimit == nil || *st.FloorAirLimit != 28 {
		t.Errorf("floor air limit = %v", st.FloorAirLimit)
	}
	if st.FloorMax == nil || *st.FloorMax != 30 {
		t.Errorf("floor max = %v", st.FloorMax)
	}
}

func TestUpdateLowVoltagePump(t *testing.T) {
	client := &fakeClient{attrs: attrsFromJSON(`{
		"pumpProtectDuration": {"status": "on", "value": 60},
		"pumpProtectPeriod": {"status": "on", "value": 1},
		"cycleLengthOutput2": {"status": "on", "value": 900}
	}`)}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	th := newTestThermostat(7372, "TH1400ZB", client, clock, nil)
	th.Update(context.Background())

	st := th.State()
	if st.PumpProtectStatus != "on" || st.PumpProtectDuration != 60 || st.PumpProtectPeriod != 1 {
		t.Errorf("pump = %q/%v/%v", st.PumpProtectStatus, st.PumpProtectDuration, st.PumpProtectPeriod)
	}
	if !th.View().AuxHeatOn {
		t.Error("aux heat should be on with output 2 cycle on")
	}
}

func TestUnavailableSnoozesPolling(t *testing.T) {
	client := &fakeClient{attrsErr: &neviweb.APIError{Code: neviweb.CodeDeviceUnavailable}}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	notifier := &recordingNotifier{}
	th := newTestThermostat(1123, "TH1123ZB", client, clock, notifier)

	th.Update(context.Background())
	if th.Active() {
		t.Fatal("device should be inactive after DVCUNVLB")
	}
	if len(notifier.messages) != 1 || !strings.Contains(notifier.messages[0], "halted for 20 minutes") {
		t.Errorf("notifications = %v", notifier.messages)
	}

	before := client.count("GetDeviceAttributes")
	clock.Advance(10 * time.Minute)
	if th.Update(context.Background()) {
		t.Error("poll inside the cooldown must not call the vendor")
	}
	if client.count("GetDeviceAttributes") != before {
		t.Error("vendor called during cooldown")
	}

	clock.Advance(11 * time.Minute)
	if th.Update(context.Background()) {
		t.Error("reactivating poll must not call the vendor")
	}
	if !th.Active() {
		t.Error("device should be reactivated after the cooldown")
	}
	if len(notifier.messages) != 2 || !strings.Contains(notifier.messages[1], "restarted") {
		t.Errorf("notifications = %v", notifier.messages)
	}

	client.attrsErr = nil
	client.attrs = attrsFromJSON(heatPayload)
	if !th.Update(context.Background()) {
		t.Error("active device should poll")
	}
}

func TestManualDeactivationHolds(t *testing.T) {
	client := &fakeClient{attrs: attrsFromJSON(heatPayload)}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	th := newTestThermostat(1123, "TH1123ZB", client, clock, nil)

	th.SetActivation(false)
	clock.Advance(time.Hour)
	if th.Update(context.Background()) || th.Active() {
		t.Error("manually deactivated device must stay inactive")
	}
	th.SetActivation(true)
	if !th.Update(context.Background()) {
		t.Error("reactivated device should poll")
	}
}

func TestSessionErrors(t *testing.T) {
	tests := []struct {
		code       string
		reconnects int
		notes      int
	}{
		{neviweb.CodeSessionExpired, 1, 0},
		{neviweb.CodeSessionLimit, 1, 1},
		{neviweb.CodeDeviceBusy, 0, 0},
		{"SOMETHINGNEW", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			client := &fakeClient{attrsErr: &neviweb.APIError{Code: tt.code}}
			clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
			notifier := &recordingNotifier{}
			th := newTestThermostat(1123, "TH1123ZB", client, clock, notifier)
			th.Update(context.Background())

			if got := client.count("Reconnect"); got != tt.reconnects {
				t.Errorf("reconnects = %d, want %d", got, tt.reconnects)
			}
			if len(notifier.messages) != tt.notes {
				t.Errorf("notifications = %v", notifier.messages)
			}
			if !th.Active() {
				t.Error("device should stay active")
			}
		})
	}
}

func TestStatsIntervalGate(t *testing.T) {
	client := &fakeClient{
		attrsErr: errors.New("network down"),
		hourly:   []neviweb.StatEntry{{Period: 100, Counter: 1000}, {Period: 250, Counter: 4000}},
		daily:    []neviweb.StatEntry{{Period: 3000, Counter: 9000}, {Period: 1, Counter: 1}},
		monthly:  []neviweb.StatEntry{{Period: 50000, Counter: 120000}},
	}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	th := newTestThermostat(1123, "TH1123ZB", client, clock, nil)

	// First stat fetch is backdated by 1500 s, so 1800 s needs 301 s more.
	clock.Advance(200 * time.Second)
	th.Update(context.Background())
	if client.count("HourlyStats") != 0 {
		t.Fatal("stats fetched before the interval elapsed")
	}

	clock.Advance(200 * time.Second)
	th.Update(context.Background())
	if client.count("HourlyStats") != 1 || client.count("MonthlyStats") != 1 {
		t.Fatalf("stats not fetched after the interval despite failed poll: %v", client.Calls())
	}

	e := th.State().Energy
	if e.HourlyCount == nil || *e.HourlyCount != 4 || *e.HourlyKWh != 0.25 {
		t.Errorf("hourly = %v/%v", e.HourlyCount, e.HourlyKWh)
	}
	if e.DailyCount == nil || *e.DailyCount != 9 || *e.DailyKWh != 3 {
		t.Errorf("daily = %v/%v", e.DailyCount, e.DailyKWh)
	}
	if e.MonthlyCount != nil {
		t.Errorf("monthly with a single entry should stay unset, got %v", *e.MonthlyCount)
	}

	clock.Advance(time.Minute)
	th.Update(context.Background())
	if client.count("HourlyStats") != 1 {
		t.Error("stats refetched inside the interval")
	}
}

func TestConcurrentUpdatesFetchStatsOnce(t *testing.T) {
	client := &fakeClient{
		attrs:  attrsFromJSON(heatPayload),
		hourly: []neviweb.StatEntry{{Period: 100, Counter: 1000}, {Period: 250, Counter: 4000}},
		block:  make(chan struct{}),
	}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	th := newTestThermostat(1123, "TH1123ZB", client, clock, nil)
	clock.Advance(400 * time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			th.Update(context.Background())
		}()
	}

	deadline := time.Now().Add(2 * time.Second)
	for client.count("GetDeviceAttributes") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	// Let the second update reach the device before releasing the first.
	time.Sleep(50 * time.Millisecond)
	if n := client.count("GetDeviceAttributes"); n != 1 {
		t.Errorf("overlapping attribute reads = %d, want 1", n)
	}
	close(client.block)
	wg.Wait()

	if n := client.count("GetDeviceAttributes"); n != 2 {
		t.Errorf("attribute reads = %d, want 2", n)
	}
	if n := client.count("HourlyStats"); n != 1 {
		t.Errorf("hourly stat fetches = %d, want 1", n)
	}
}

func TestStatsSkippedForFLP55(t *testing.T) {
	client := &fakeClient{attrs: attrsFromJSON(`{}`)}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	th := newTestThermostat(738, "FLP55", client, clock, nil)
	clock.Advance(time.Hour)
	th.Update(context.Background())
	if client.count("HourlyStats") != 0 {
		t.Error("FLP55 must not fetch stats")
	}
}

func TestSensorErrorCodes(t *testing.T) {
	client := &fakeClient{
		attrs:  attrsFromJSON(`{}`),
		sensor: map[string]any{"compensationSensor": "ok", "gfciBase": "fault", "airTopSensor": "ok"},
	}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	th := newTestThermostat(737, "TH1300ZB", client, clock, nil)
	th.Update(context.Background())

	codes := th.State().SensorCodes
	if codes["compensationSensor"] != "ok" || codes["gfciBase"] != "fault" {
		t.Errorf("codes = %v", codes)
	}
	if _, ok := codes["airTopSensor"]; ok {
		t.Error("gen2 code read on a floor thermostat")
	}
}

func TestUnsupportedModel(t *testing.T) {
	_, err := New(neviweb.DeviceInfo{ID: 1, Signature: &neviweb.Signature{Model: 2506}}, "x", &fakeClient{}, Options{})
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}
