package thermostat

import "time"

// View is the climate entity presented to Home Assistant and the API: the
// raw state plus values derived from it.
type View struct {
	ID       int          `json:"id"`
	Name     string       `json:"name"`
	SKU      string       `json:"sku"`
	Model    int          `json:"device_model"`
	ModelCfg int          `json:"device_model_cfg"`
	Firmware string       `json:"firmware"`
	Family   string       `json:"family"`
	Caps     Capabilities `json:"capabilities"`
	Active   bool         `json:"activation"`
	LastPoll *time.Time   `json:"last_poll,omitempty"`

	HVACMode          string   `json:"hvac_mode"`
	HVACModes         []string `json:"hvac_modes"`
	HVACAction        string   `json:"hvac_action"`
	PresetMode        string   `json:"preset_mode"`
	PresetModes       []string `json:"preset_modes"`
	TargetTemperature float64  `json:"target_temperature"`
	Unit              string   `json:"temperature_unit"`
	KeypadDisplay     string   `json:"keypad"`
	CycleLengthLabel  string   `json:"cycle_length_label"`
	AuxHeatOn         bool     `json:"aux_heat"`
	SupportsAux       bool     `json:"supports_aux_heat"`
	IsOn              bool     `json:"is_on"`

	State
}

// View returns the current entity view.
func (t *Thermostat) View() View {
	t.mu.Lock()
	st := t.state.clone()
	active := t.active
	lastPoll := t.lastPoll
	t.mu.Unlock()

	caps := t.family.Caps
	v := View{
		ID:                t.id,
		Name:              t.name,
		SKU:               t.sku,
		Model:             t.model,
		ModelCfg:          t.modelCfg,
		Firmware:          t.firmware,
		Family:            t.family.Name,
		Caps:              caps,
		Active:            active,
		HVACMode:          hvacMode(st),
		HVACModes:         hvacModes(caps),
		HVACAction:        hvacAction(st, t.homekit),
		PresetMode:        presetMode(st),
		PresetModes:       presetModes(caps),
		TargetTemperature: targetTemperature(st),
		Unit:              TemperatureUnit(st.TemperatureFormat),
		KeypadDisplay:     LockDisplay(st.Keypad),
		CycleLengthLabel:  PeriodLabel(st.CycleLength),
		AuxHeatOn:         auxHeatOn(st),
		SupportsAux:       caps.Floor || caps.WifiFloor || caps.LowWifi,
		IsOn:              st.OperationMode == ModeHeat || st.OperationMode == ModeAuto,
		State:             st,
	}
	if !lastPoll.IsZero() {
		v.LastPoll = &lastPoll
	}
	return v
}

func hvacMode(s State) string {
	switch s.OperationMode {
	case ModeOff:
		return ModeOff
	case ModeAuto, ModeAutoBypass:
		return ModeAuto
	default:
		return ModeHeat
	}
}

func hvacModes(c Capabilities) []string {
	switch {
	case c.Wifi:
		return []string{ModeAuto, ModeHeat, ModeOff}
	case c.HC:
		return []string{ModeCool, ModeHeat, ModeOff}
	default:
		return []string{ModeHeat, ModeOff}
	}
}

func hvacAction(s State, homekit bool) string {
	switch {
	case s.OperationMode == ModeOff:
		return "off"
	case s.OperationMode == ModeAutoBypass && !homekit:
		return ModeAutoBypass
	case s.HeatLevel == 0:
		return "idle"
	default:
		return "heating"
	}
}

func presetMode(s State) string {
	if s.Occupancy == PresetAway {
		return PresetAway
	}
	return PresetNone
}

func presetModes(c Capabilities) []string {
	if c.Wifi {
		return []string{PresetAway, PresetHome, PresetNone}
	}
	return []string{PresetNone}
}

// targetTemperature is the setpoint adjusted by the Eco Sinope delta, never
// below the minimum setpoint.
func targetTemperature(s State) float64 {
	temp := s.TargetTemp + s.DRSetpointValue
	if temp < s.MinTemp {
		return s.MinTemp
	}
	return temp
}

func auxHeatOn(s State) bool {
	return s.AuxHeat == "slave" || s.CycleOutput2Status == "on" || s.AuxCycleLength > 0
}
