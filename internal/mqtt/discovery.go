//go:build !no_mqtt

package mqtt

import (
	"fmt"
	"strconv"

	"neviweb-go-home/internal/coordinator"
	"neviweb-go-home/internal/thermostat"
)

const manufacturer = "Sinopé Technologies"

// HA only knows its own action names; autoBypass is still heating.
const actionTemplate = "{{ value_json.hvac_action if value_json.hvac_action in ['off', 'idle', 'heating'] else 'heating' }}"

// discoveryMsg is a Home Assistant MQTT discovery payload.
type discoveryMsg struct {
	Topic   string // e.g. "homeassistant/climate/neviweb130_101/climate/config"
	Payload []byte // JSON, empty means delete
}

// haDevice is the "device" block in HA discovery.
type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	SWVersion    string   `json:"sw_version,omitempty"`
	Name         string   `json:"name"`
}

// haDiscovery is a generic HA discovery payload. Climate entities use the
// mode, temperature and preset topics; sensors use the state topic and a
// value template.
type haDiscovery struct {
	Name              string   `json:"name"`
	UniqueID          string   `json:"unique_id"`
	StateTopic        string   `json:"state_topic,omitempty"`
	AvailabilityTopic string   `json:"availability_topic"`
	ValueTemplate     string   `json:"value_template,omitempty"`
	UnitOfMeasurement string   `json:"unit_of_measurement,omitempty"`
	DeviceClass       string   `json:"device_class,omitempty"`
	StateClass        string   `json:"state_class,omitempty"`
	EntityCategory    string   `json:"entity_category,omitempty"`
	PayloadOn         string   `json:"payload_on,omitempty"`
	PayloadOff        string   `json:"payload_off,omitempty"`
	Device            haDevice `json:"device"`

	ModeStateTopic           string   `json:"mode_state_topic,omitempty"`
	ModeStateTemplate        string   `json:"mode_state_template,omitempty"`
	ModeCommandTopic         string   `json:"mode_command_topic,omitempty"`
	Modes                    []string `json:"modes,omitempty"`
	TemperatureStateTopic    string   `json:"temperature_state_topic,omitempty"`
	TemperatureStateTemplate string   `json:"temperature_state_template,omitempty"`
	TemperatureCommandTopic  string   `json:"temperature_command_topic,omitempty"`
	CurrentTemperatureTopic  string   `json:"current_temperature_topic,omitempty"`
	CurrentTemperatureTmpl   string   `json:"current_temperature_template,omitempty"`
	ActionTopic              string   `json:"action_topic,omitempty"`
	ActionTemplate           string   `json:"action_template,omitempty"`
	PresetModeStateTopic     string   `json:"preset_mode_state_topic,omitempty"`
	PresetModeValueTemplate  string   `json:"preset_mode_value_template,omitempty"`
	PresetModeCommandTopic   string   `json:"preset_mode_command_topic,omitempty"`
	PresetModes              []string `json:"preset_modes,omitempty"`
	MinTemp                  float64  `json:"min_temp,omitempty"`
	MaxTemp                  float64  `json:"max_temp,omitempty"`
	TempStep                 float64  `json:"temp_step,omitempty"`
	TemperatureUnit          string   `json:"temperature_unit,omitempty"`
}

// deviceIdentifier returns the unique identifier for HA device registry.
func deviceIdentifier(id int) string {
	return "neviweb130_" + strconv.Itoa(id)
}

// deviceTopicName returns the topic name for a device: its slugged display
// name, or the vendor id when the name has no usable characters.
func deviceTopicName(snap coordinator.Snapshot) string {
	if slug := coordinator.Slug(snap.DisplayName()); slug != "" {
		return slug
	}
	return strconv.Itoa(snap.ID)
}

// buildDiscovery generates HA discovery messages for a thermostat.
func buildDiscovery(snap coordinator.Snapshot, prefix string) []discoveryMsg {
	avail := prefix + "/bridge/state"
	stateTopic := prefix + "/" + deviceTopicName(snap)
	cmdTopic := stateTopic + "/set"
	nodeID := deviceIdentifier(snap.ID)
	displayName := snap.DisplayName()

	haDev := haDevice{
		Identifiers:  []string{nodeID},
		Manufacturer: manufacturer,
		Model:        snap.SKU,
		SWVersion:    snap.Firmware,
		Name:         displayName,
	}

	msgs := []discoveryMsg{buildClimate(snap, nodeID, stateTopic, cmdTopic, avail, haDev)}

	msgs = append(msgs,
		buildSensor(nodeID, displayName, stateTopic, avail, haDev,
			"heat_level", "Heat Level", "", "%", "measurement",
			"{{ value_json.heat_level }}"),
		buildSensor(nodeID, displayName, stateTopic, avail, haDev,
			"hourly_kwh", "Hourly Energy", "energy", "kWh", "total",
			"{{ value_json.energy.hourly_kwh }}"),
		buildSensor(nodeID, displayName, stateTopic, avail, haDev,
			"daily_kwh", "Daily Energy", "energy", "kWh", "total",
			"{{ value_json.energy.daily_kwh }}"),
		buildSensor(nodeID, displayName, stateTopic, avail, haDev,
			"monthly_kwh", "Monthly Energy", "energy", "kWh", "total",
			"{{ value_json.energy.monthly_kwh }}"),
	)

	if snap.Caps.Wifi {
		msgs = append(msgs, buildSensor(nodeID, displayName, stateTopic, avail, haDev,
			"rssi", "Signal", "signal_strength", "dBm", "measurement",
			"{{ value_json.rssi }}"))
	}

	msgs = append(msgs, buildBinarySensor(nodeID, displayName, stateTopic, avail, haDev,
		"activation", "Polling", "running",
		"{{ 'ON' if value_json.activation else 'OFF' }}"))

	return msgs
}

func buildClimate(snap coordinator.Snapshot, nodeID, stateTopic, cmdTopic, avail string, haDev haDevice) discoveryMsg {
	topic := fmt.Sprintf("homeassistant/climate/%s/climate/config", nodeID)
	payload := haDiscovery{
		Name:              snap.DisplayName(),
		UniqueID:          nodeID + "_climate",
		AvailabilityTopic: avail,
		Device:            haDev,

		ModeStateTopic:           stateTopic,
		ModeStateTemplate:        "{{ value_json.hvac_mode }}",
		ModeCommandTopic:         cmdTopic + "/hvac_mode",
		Modes:                    snap.HVACModes,
		TemperatureStateTopic:    stateTopic,
		TemperatureStateTemplate: "{{ value_json.target_temperature }}",
		TemperatureCommandTopic:  cmdTopic + "/temperature",
		CurrentTemperatureTopic:  stateTopic,
		CurrentTemperatureTmpl:   "{{ value_json.current_temperature }}",
		ActionTopic:              stateTopic,
		ActionTemplate:           actionTemplate,
		MinTemp:                  snap.MinTemp,
		MaxTemp:                  snap.MaxTemp,
		TempStep:                 0.5,
	}
	if snap.TemperatureFormat == "fahrenheit" {
		payload.TemperatureUnit = "F"
	} else {
		payload.TemperatureUnit = "C"
	}

	// "none" is implied by HA and rejected when listed.
	for _, p := range snap.PresetModes {
		if p != thermostat.PresetNone {
			payload.PresetModes = append(payload.PresetModes, p)
		}
	}
	if len(payload.PresetModes) > 0 {
		payload.PresetModeStateTopic = stateTopic
		payload.PresetModeValueTemplate = "{{ value_json.preset_mode }}"
		payload.PresetModeCommandTopic = cmdTopic + "/preset_mode"
	}
	return discoveryMsg{Topic: topic, Payload: mustJSON(payload)}
}

func buildSensor(nodeID, displayName, stateTopic, avail string, haDev haDevice,
	objectID, suffix, deviceClass, unit, stateClass, valueTmpl string) discoveryMsg {

	topic := fmt.Sprintf("homeassistant/sensor/%s/%s/config", nodeID, objectID)
	payload := haDiscovery{
		Name:              displayName + " " + suffix,
		UniqueID:          nodeID + "_" + objectID,
		StateTopic:        stateTopic,
		AvailabilityTopic: avail,
		ValueTemplate:     valueTmpl,
		UnitOfMeasurement: unit,
		DeviceClass:       deviceClass,
		StateClass:        stateClass,
		Device:            haDev,
	}
	return discoveryMsg{Topic: topic, Payload: mustJSON(payload)}
}

func buildBinarySensor(nodeID, displayName, stateTopic, avail string, haDev haDevice,
	objectID, suffix, deviceClass, valueTmpl string) discoveryMsg {

	topic := fmt.Sprintf("homeassistant/binary_sensor/%s/%s/config", nodeID, objectID)
	payload := haDiscovery{
		Name:              displayName + " " + suffix,
		UniqueID:          nodeID + "_" + objectID,
		StateTopic:        stateTopic,
		AvailabilityTopic: avail,
		ValueTemplate:     valueTmpl,
		DeviceClass:       deviceClass,
		EntityCategory:    "diagnostic",
		PayloadOn:         "ON",
		PayloadOff:        "OFF",
		Device:            haDev,
	}
	return discoveryMsg{Topic: topic, Payload: mustJSON(payload)}
}

// buildRemoveDiscovery generates empty retained messages to remove a device from HA.
func buildRemoveDiscovery(id int) []discoveryMsg {
	nodeID := deviceIdentifier(id)

	components := []struct{ comp, obj string }{
		{"climate", "climate"},
		{"sensor", "heat_level"},
		{"sensor", "hourly_kwh"},
		{"sensor", "daily_kwh"},
		{"sensor", "monthly_kwh"},
		{"sensor", "rssi"},
		{"binary_sensor", "activation"},
	}

	var msgs []discoveryMsg
	for _, c := range components {
		msgs = append(msgs, discoveryMsg{
			Topic:   fmt.Sprintf("homeassistant/%s/%s/%s/config", c.comp, nodeID, c.obj),
			Payload: nil, // empty retained = delete
		})
	}
	return msgs
}
