//go:build !no_mqtt

package mqtt

import (
	"encoding/json"
	"errors"
	"testing"

	"neviweb-go-home/internal/coordinator"
	"neviweb-go-home/internal/thermostat"
)

func testSnapshot() coordinator.Snapshot {
	temp := 20.5
	return coordinator.Snapshot{
		View: thermostat.View{
			ID:          101,
			Name:        "neviweb130 climate Living",
			SKU:         "TH1123ZB",
			Model:       1123,
			Firmware:    "1.5.2",
			HVACModes:   []string{"heat", "off"},
			PresetModes: []string{"none"},
			State: thermostat.State{
				CurrentTemp:       &temp,
				MinTemp:           5,
				MaxTemp:           30,
				TemperatureFormat: "celsius",
			},
		},
		Network: "Home",
	}
}

func findMsg(msgs []discoveryMsg, topic string) *discoveryMsg {
	for i := range msgs {
		if msgs[i].Topic == topic {
			return &msgs[i]
		}
	}
	return nil
}

func extractTopics(msgs []discoveryMsg) map[string]bool {
	topics := make(map[string]bool)
	for _, m := range msgs {
		topics[m.Topic] = true
	}
	return topics
}

func TestDiscoveryClimate(t *testing.T) {
	msgs := buildDiscovery(testSnapshot(), "neviweb")
	msg := findMsg(msgs, "homeassistant/climate/neviweb130_101/climate/config")
	if msg == nil {
		t.Fatal("climate discovery not found")
	}

	var payload haDiscovery
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Name != "neviweb130 climate Living" {
		t.Errorf("name = %q", payload.Name)
	}
	if payload.UniqueID != "neviweb130_101_climate" {
		t.Errorf("unique_id = %q", payload.UniqueID)
	}
	if payload.ModeCommandTopic != "neviweb/neviweb130_climate_living/set/hvac_mode" {
		t.Errorf("mode_command_topic = %q", payload.ModeCommandTopic)
	}
	if payload.TemperatureStateTopic != "neviweb/neviweb130_climate_living" {
		t.Errorf("temperature_state_topic = %q", payload.TemperatureStateTopic)
	}
	if payload.AvailabilityTopic != "neviweb/bridge/state" {
		t.Errorf("availability_topic = %q", payload.AvailabilityTopic)
	}
	if len(payload.Modes) != 2 || payload.Modes[0] != "heat" {
		t.Errorf("modes = %v", payload.Modes)
	}
	if payload.MinTemp != 5 || payload.MaxTemp != 30 {
		t.Errorf("min/max = %v/%v", payload.MinTemp, payload.MaxTemp)
	}
	if payload.TemperatureUnit != "C" {
		t.Errorf("unit = %q", payload.TemperatureUnit)
	}
	if payload.PresetModeCommandTopic != "" || len(payload.PresetModes) != 0 {
		t.Errorf("presets offered for a device without any: %v", payload.PresetModes)
	}
	if payload.Device.Model != "TH1123ZB" || payload.Device.SWVersion != "1.5.2" {
		t.Errorf("device = %+v", payload.Device)
	}
}

func TestDiscoveryWifiPresetsAndSignal(t *testing.T) {
	snap := testSnapshot()
	snap.Caps.Wifi = true
	snap.PresetModes = []string{"away", "home", "none"}
	snap.FriendlyName = "Salon"
	snap.TemperatureFormat = "fahrenheit"

	msgs := buildDiscovery(snap, "neviweb")
	topics := extractTopics(msgs)
	if !topics["homeassistant/sensor/neviweb130_101/rssi/config"] {
		t.Error("rssi discovery missing for wifi device")
	}

	var payload haDiscovery
	msg := findMsg(msgs, "homeassistant/climate/neviweb130_101/climate/config")
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if len(payload.PresetModes) != 2 || payload.PresetModes[0] != "away" || payload.PresetModes[1] != "home" {
		t.Errorf("preset_modes = %v, want [away home]", payload.PresetModes)
	}
	if payload.PresetModeCommandTopic != "neviweb/salon/set/preset_mode" {
		t.Errorf("preset_mode_command_topic = %q", payload.PresetModeCommandTopic)
	}
	if payload.TemperatureUnit != "F" {
		t.Errorf("unit = %q", payload.TemperatureUnit)
	}
}

func TestDiscoverySensors(t *testing.T) {
	msgs := buildDiscovery(testSnapshot(), "neviweb")
	topics := extractTopics(msgs)
	for _, obj := range []string{"heat_level", "hourly_kwh", "daily_kwh", "monthly_kwh"} {
		if !topics["homeassistant/sensor/neviweb130_101/"+obj+"/config"] {
			t.Errorf("%s discovery missing", obj)
		}
	}
	if topics["homeassistant/sensor/neviweb130_101/rssi/config"] {
		t.Error("rssi discovery for a zigbee device")
	}

	msg := findMsg(msgs, "homeassistant/sensor/neviweb130_101/daily_kwh/config")
	var payload haDiscovery
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.ValueTemplate != "{{ value_json.energy.daily_kwh }}" {
		t.Errorf("value_template = %q", payload.ValueTemplate)
	}
	if payload.DeviceClass != "energy" || payload.UnitOfMeasurement != "kWh" {
		t.Errorf("class/unit = %q/%q", payload.DeviceClass, payload.UnitOfMeasurement)
	}

	msg = findMsg(msgs, "homeassistant/binary_sensor/neviweb130_101/activation/config")
	if msg == nil {
		t.Fatal("activation discovery missing")
	}
}

func TestRemoveDiscoveryCoversBuild(t *testing.T) {
	snap := testSnapshot()
	snap.Caps.Wifi = true
	removed := extractTopics(buildRemoveDiscovery(101))
	for _, m := range buildDiscovery(snap, "neviweb") {
		if !removed[m.Topic] {
			t.Errorf("%s is never removed", m.Topic)
		}
	}
	for _, m := range buildRemoveDiscovery(101) {
		if len(m.Payload) != 0 {
			t.Errorf("%s payload = %q, want empty", m.Topic, m.Payload)
		}
	}
}

func TestDeviceTopicName(t *testing.T) {
	tests := []struct {
		name string
		snap coordinator.Snapshot
		want string
	}{
		{
			name: "friendly name",
			snap: coordinator.Snapshot{View: thermostat.View{ID: 1, Name: "x"}, FriendlyName: "Salle de bain"},
			want: "salle_de_bain",
		},
		{
			name: "device name",
			snap: coordinator.Snapshot{View: thermostat.View{ID: 1, Name: "neviweb130 climate 2 Basement"}},
			want: "neviweb130_climate_2_basement",
		},
		{
			name: "id fallback",
			snap: coordinator.Snapshot{View: thermostat.View{ID: 42, Name: "!!"}},
			want: "42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := deviceTopicName(tt.snap)
			if got != tt.want {
				t.Errorf("deviceTopicName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplitCommandTopic(t *testing.T) {
	tests := []struct {
		topic  string
		device string
		field  string
		ok     bool
	}{
		{"neviweb/living/set", "living", "", true},
		{"neviweb/living/set/hvac_mode", "living", "hvac_mode", true},
		{"neviweb/living", "", "", false},
		{"neviweb/bridge/state", "", "", false},
		{"other/living/set", "", "", false},
		{"neviweb/living/set/a/b", "", "", false},
	}
	for _, tt := range tests {
		device, field, ok := splitCommandTopic("neviweb", tt.topic)
		if device != tt.device || field != tt.field || ok != tt.ok {
			t.Errorf("splitCommandTopic(%q) = %q, %q, %v", tt.topic, device, field, ok)
		}
	}
}

func TestParseCommandService(t *testing.T) {
	cmds, err := parseCommand([]byte(`{"service":"set_backlight","backlightAdaptive":"auto"}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 1 || cmds[0].Service != "set_backlight" {
		t.Fatalf("cmds = %+v", cmds)
	}
	if _, ok := cmds[0].Args["service"]; ok {
		t.Error("service key leaked into args")
	}
	if got, _ := cmds[0].Args.String("backlightAdaptive"); got != "auto" {
		t.Errorf("backlightAdaptive = %q", got)
	}
}

func TestParseCommandClimateKeys(t *testing.T) {
	cmds, err := parseCommand([]byte(`{"temperature":21.5,"hvac_mode":"heat","aux_heat":"ON"}`))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"set_hvac_mode", "set_temperature", "turn_aux_heat_on"}
	if len(cmds) != len(want) {
		t.Fatalf("cmds = %+v", cmds)
	}
	for i, svc := range want {
		if cmds[i].Service != svc {
			t.Errorf("cmds[%d] = %q, want %q", i, cmds[i].Service, svc)
		}
	}
	if temp, err := cmds[1].Args.Float("temperature"); err != nil || temp != 21.5 {
		t.Errorf("temperature = %v, %v", temp, err)
	}

	cmds, err = parseCommand([]byte(`{"aux_heat":0}`))
	if err != nil || len(cmds) != 1 || cmds[0].Service != "turn_aux_heat_off" {
		t.Errorf("aux_heat 0 = %+v, %v", cmds, err)
	}
}

func TestParseCommandErrors(t *testing.T) {
	if _, err := parseCommand([]byte(`not json`)); err == nil {
		t.Error("expected decode error")
	}
	if _, err := parseCommand([]byte(`{"brightness":10}`)); !errors.Is(err, errEmptyCommand) {
		t.Errorf("err = %v, want errEmptyCommand", err)
	}
	if _, err := parseCommand([]byte(`{"aux_heat":"maybe"}`)); !errors.Is(err, coordinator.ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestParseFieldCommand(t *testing.T) {
	cmd, err := parseFieldCommand("temperature", []byte(" 19.5 "))
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Service != "set_temperature" || cmd.Args["temperature"] != 19.5 {
		t.Errorf("cmd = %+v", cmd)
	}

	cmd, err = parseFieldCommand("hvac_mode", []byte("off"))
	if err != nil || cmd.Service != "set_hvac_mode" || cmd.Args["hvac_mode"] != "off" {
		t.Errorf("cmd = %+v, %v", cmd, err)
	}

	cmd, err = parseFieldCommand("preset_mode", []byte("away"))
	if err != nil || cmd.Service != "set_preset_mode" {
		t.Errorf("cmd = %+v, %v", cmd, err)
	}

	if _, err := parseFieldCommand("temperature", []byte("warm")); !errors.Is(err, coordinator.ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
	if _, err := parseFieldCommand("fan_mode", []byte("auto")); err == nil {
		t.Error("expected error for unknown field")
	}
}
