package thermostat

import (
	"encoding/json"
	"slices"
)

// Capabilities are the feature flags of a thermostat family.
type Capabilities struct {
	Floor      bool `json:"is_floor"`
	Wifi       bool `json:"is_wifi"`
	HC         bool `json:"is_hc"`
	LowVoltage bool `json:"is_low_voltage"`
	Double     bool `json:"is_double"`
	Gen2       bool `json:"is_gen2"`
	LowWifi    bool `json:"is_low_wifi"`
	WifiFloor  bool `json:"is_wifi_floor"`
}

// Family describes one group of thermostat models: what to poll, how to map
// the response and which features the models have.
type Family struct {
	Name   string
	Models []int
	Caps   Capabilities

	attributes  []string
	fields      []field
	sensorCodes []string
}

// Attributes returns the full attribute list polled for the family.
func (f *Family) Attributes() []string {
	return dedupe(slices.Concat(commonAttributes, f.attributes))
}

// SensorCodes returns the errorCodeSet1 keys read for the family.
func (f *Family) SensorCodes() []string {
	return f.sensorCodes
}

const (
	required = false
	optional = true
)

// field maps one vendor attribute onto the state.
type field struct {
	attr     string
	optional bool
	apply    func(s *State, raw json.RawMessage) error
}

func spec[T any](attr string, opt bool, set func(*State, T)) field {
	return field{
		attr:     attr,
		optional: opt,
		apply: func(s *State, raw json.RawMessage) error {
			var v T
			if err := json.Unmarshal(raw, &v); err != nil {
				return err
			}
			set(s, v)
			return nil
		},
	}
}

func str(attr string, opt bool, set func(*State, string)) field {
	return spec(attr, opt, func(s *State, v flexString) { set(s, string(v)) })
}

func num(attr string, opt bool, set func(*State, float64)) field {
	return spec(attr, opt, func(s *State, v flexFloat) { set(s, v.Value) })
}

func rawValue(attr string, opt bool, set func(*State, any)) field {
	return spec(attr, opt, set)
}

var commonAttributes = []string{
	"drSetpoint", "drStatus", "outputPercentDisplay", "roomSetpoint", "roomSetpointMax",
	"roomSetpointMin", "roomTemperatureDisplay", "roomTemperature", "temperatureFormat", "timeFormat",
}

var commonFields = []field{
	spec("roomTemperature", required, func(s *State, v struct {
		Value flexFloat `json:"value"`
	}) {
		if v.Value.Valid {
			s.CurrentTemp = v.Value.ptr()
		}
	}),
	num("roomSetpoint", required, func(s *State, v float64) { s.TargetTemp = v }),
	num("roomSetpointMin", required, func(s *State, v float64) { s.MinTemp = v }),
	num("roomSetpointMax", required, func(s *State, v float64) { s.MaxTemp = v }),
	str("temperatureFormat", required, func(s *State, v string) { s.TemperatureFormat = v }),
	str("timeFormat", required, func(s *State, v string) { s.TimeFormat = v }),
	str("config2ndDisplay", required, func(s *State, v string) { s.SecondDisplay = v }),
	spec("drSetpoint", optional, func(s *State, v statusValue) {
		s.DRSetpointStatus = string(v.Status)
		s.DRSetpointValue = v.Value.Value
	}),
	spec("drStatus", optional, func(s *State, v struct {
		DRActive      flexString `json:"drActive"`
		OptOut        flexString `json:"optOut"`
		Setpoint      flexString `json:"setpoint"`
		PowerAbsolute flexString `json:"powerAbsolute"`
		PowerRelative flexString `json:"powerRelative"`
	}) {
		s.DRActive = string(v.DRActive)
		s.DROptOut = string(v.OptOut)
		s.DRSetpoint = string(v.Setpoint)
		s.DRPowerAbsolute = string(v.PowerAbsolute)
		s.DRPowerRelative = string(v.PowerRelative)
	}),
}

// ZigBee thermostats share the display, keypad and mode attributes.
var zigbeeFields = []field{
	rawValue("roomTemperatureDisplay", required, func(s *State, v any) { s.TempDisplayValue = v }),
	num("outputPercentDisplay", required, func(s *State, v float64) { s.HeatLevel = v }),
	str("lockKeypad", required, func(s *State, v string) { s.Keypad = v }),
	str("backlightAdaptive", required, func(s *State, v string) { s.Backlight = v }),
	str("systemMode", required, func(s *State, v string) { s.OperationMode = v }),
}

var wifiFields = []field{
	spec("outputPercentDisplay", required, func(s *State, v struct {
		Percent    flexFloat  `json:"percent"`
		SourceType flexString `json:"sourceType"`
	}) {
		s.HeatLevel = v.Percent.Value
		s.HeatSourceType = string(v.SourceType)
	}),
	str("setpointMode", required, func(s *State, v string) { s.OperationMode = v }),
	str("occupancyMode", required, func(s *State, v string) { s.Occupancy = v }),
	str("keyboardLock", required, func(s *State, v string) { s.Keypad = v }),
	rawValue("wifiRssi", required, func(s *State, v any) { s.RSSI = v }),
	str("backlightAutoDim", required, func(s *State, v string) { s.Backlight = v }),
	num("roomSetpointAway", required, func(s *State, v float64) { s.TargetTempAway = v }),
	rawValue("loadWattOutput1", required, func(s *State, v any) { s.Load1 = v }),
	str("earlyStartCfg", optional, func(s *State, v string) { s.EarlyStart = v }),
}

func roomTempDisplay(opt bool) field {
	return spec("roomTemperatureDisplay", opt, func(s *State, v struct {
		Status flexString `json:"status"`
		Value  any        `json:"value"`
	}) {
		s.TempDisplayStatus = string(v.Status)
		s.TempDisplayValue = v.Value
	})
}

func floorAirLimit(opt bool) field {
	return spec("floorMaxAirTemperature", opt, func(s *State, v statusValue) {
		s.FloorAirLimit = v.Value.ptr()
		s.FloorAirLimitStatus = string(v.Status)
	})
}

func floorLimitHigh(opt bool) field {
	return spec("floorLimitHigh", opt, func(s *State, v statusValue) {
		s.FloorMax = v.Value.ptr()
		s.FloorMaxStatus = string(v.Status)
	})
}

func floorLimitLow(opt bool) field {
	return spec("floorLimitLow", opt, func(s *State, v statusValue) {
		s.FloorMin = v.Value.ptr()
		s.FloorMinStatus = string(v.Status)
	})
}

func output2(opt bool) field {
	return spec("loadWattOutput2", opt, func(s *State, v load) {
		s.Load2Status = v.Status
		s.Load2 = v.Value
	})
}

var (
	cycle       = num("cycleLength", optional, func(s *State, v float64) { s.CycleLength = v })
	rssi        = rawValue("rssi", optional, func(s *State, v any) { s.RSSI = v })
	wattage     = num("loadConnected", required, func(s *State, v float64) { s.Wattage = v })
	wifiWattage = func(opt bool) field {
		return num("loadWatt", opt, func(s *State, v float64) { s.Wattage = v })
	}
	floorMode   = str("airFloorMode", required, func(s *State, v string) { s.FloorMode = v })
	floorSensor = str("floorSensorType", required, func(s *State, v string) { s.FloorSensorType = v })
	gfciStatus  = str("gfciStatus", required, func(s *State, v string) { s.GFCIStatus = v })
	gfciAlert   = str("alertGfci", required, func(s *State, v string) { s.GFCIAlert = v })
	auxHeat     = func(opt bool) field {
		return str("auxHeatConfig", opt, func(s *State, v string) { s.AuxHeat = v })
	}
)

// Families, in lookup order.
var Families = []*Family{
	{
		Name:   "heat",
		Models: []int{1123, 1124},
		attributes: []string{"loadConnected", "lockKeypad", "backlightAdaptive", "systemMode",
			"cycleLength", "config2ndDisplay", "rssi"},
		fields:      concat(zigbeeFields, wattage, cycle, rssi),
		sensorCodes: sensorCodes(Capabilities{}),
	},
	{
		Name:   "heat_g2",
		Models: []int{300},
		Caps:   Capabilities{Gen2: true},
		attributes: []string{"loadConnected", "config2ndDisplay", "lockKeypad", "backlightAdaptive",
			"systemMode", "cycleLength", "coldLoadPickupStatus", "heatLockoutTemp"},
		fields: concat(zigbeeFields, wattage, cycle,
			str("coldLoadPickupStatus", optional, func(s *State, v string) { s.ColdLoadPickup = v }),
			num("heatLockoutTemp", optional, func(s *State, v float64) { s.HeatLockoutTemp = v }),
		),
		sensorCodes: sensorCodes(Capabilities{Gen2: true}),
	},
	{
		Name:   "floor",
		Models: []int{737},
		Caps:   Capabilities{Floor: true},
		attributes: []string{"loadConnected", "gfciStatus", "alertGfci", "airFloorMode", "auxHeatConfig",
			"loadWattOutput2", "floorMaxAirTemperature", "floorSensorType", "floorLimitHigh", "floorLimitLow",
			"lockKeypad", "backlightAdaptive", "systemMode", "cycleLength", "config2ndDisplay", "rssi"},
		fields: concat(zigbeeFields, wattage, cycle, rssi, gfciStatus, gfciAlert, floorMode, auxHeat(required),
			output2(required), floorAirLimit(required), floorSensor, floorLimitHigh(optional), floorLimitLow(optional)),
		sensorCodes: sensorCodes(Capabilities{Floor: true}),
	},
	{
		Name:   "low_voltage",
		Models: []int{7372},
		Caps:   Capabilities{LowVoltage: true},
		attributes: []string{"lockKeypad", "backlightAdaptive", "systemMode", "cycleLength", "config2ndDisplay",
			"rssi", "pumpProtectDuration", "pumpProtectPeriod", "floorMaxAirTemperature", "airFloorMode",
			"floorSensorType", "floorLimitHigh", "floorLimitLow", "cycleLengthOutput2", "loadWattOutput1",
			"loadWattOutput2"},
		fields: concat(zigbeeFields, cycle, rssi, floorMode, floorAirLimit(required), floorSensor,
			floorLimitHigh(required), floorLimitLow(required), output2(optional),
			spec("cycleLengthOutput2", required, func(s *State, v statusValue) {
				s.CycleOutput2Status = string(v.Status)
				s.CycleOutput2Value = v.Value.Value
			}),
			rawValue("loadWattOutput1", optional, func(s *State, v any) { s.Load1 = v }),
			pumpProtectLowVoltage, pumpPeriodLowVoltage,
		),
		sensorCodes: sensorCodes(Capabilities{LowVoltage: true}),
	},
	{
		Name:   "double",
		Models: []int{7373},
		Caps:   Capabilities{Double: true},
		attributes: []string{"loadConnected", "lockKeypad", "backlightAdaptive", "systemMode",
			"cycleLength", "config2ndDisplay", "rssi"},
		fields:      concat(zigbeeFields, wattage, cycle, rssi),
		sensorCodes: sensorCodes(Capabilities{Double: true}),
	},
	{
		Name:   "wifi",
		Models: []int{1510, 742},
		Caps:   Capabilities{Wifi: true},
		attributes: []string{"cycleLength", "loadWattOutput1", "loadWatt", "wifiRssi", "keyboardLock",
			"config2ndDisplay", "setpointMode", "occupancyMode", "backlightAutoDim", "earlyStartCfg",
			"roomSetpointAway"},
		fields: concat(wifiFields, wifiWattage(optional), cycle, roomTempDisplay(optional)),
	},
	{
		Name:   "low_wifi",
		Models: []int{739},
		Caps:   Capabilities{Wifi: true, LowWifi: true},
		attributes: []string{"loadWattOutput2", "auxHeatConfig", "roomSetpointAway", "earlyStartCfg",
			"backlightAutoDim", "occupancyMode", "setpointMode", "config2ndDisplay", "keyboardLock", "wifiRssi",
			"loadWatt", "loadWattOutput1", "pumpProtection", "pumpProtectDuration", "floorMaxAirTemperature",
			"airFloorMode", "floorSensorType", "auxCycleLength", "cycleLength", "floorLimitHigh", "floorLimitLow"},
		fields: concat(wifiFields, roomTempDisplay(required), wifiWattage(required), floorMode, floorSensor,
			num("auxCycleLength", required, func(s *State, v float64) { s.AuxCycleLength = v }),
			num("cycleLength", required, func(s *State, v float64) { s.CycleLength = v }),
			floorLimitHigh(required), floorLimitLow(required), floorAirLimit(required),
			auxHeat(optional), output2(required),
			spec("pumpProtection", required, func(s *State, v struct {
				Status    flexString `json:"status"`
				Frequency flexFloat  `json:"frequency"`
				Duration  flexFloat  `json:"duration"`
			}) {
				s.PumpProtectStatus = string(v.Status)
				if v.Status == "on" {
					s.PumpProtectPeriod = v.Frequency.Value
					s.PumpProtectDuration = v.Duration.Value
				}
			}),
		),
	},
	{
		Name:   "wifi_floor",
		Models: []int{738},
		Caps:   Capabilities{Wifi: true, WifiFloor: true},
		attributes: []string{"alertGfci", "floorLimitHigh", "floorLimitLow", "gfciStatus", "airFloorMode",
			"auxHeatConfig", "loadWattOutput2", "floorMaxAirTemperature", "floorSensorType", "loadWattOutput1",
			"loadWatt", "wifiRssi", "keyboardLock", "config2ndDisplay", "setpointMode", "occupancyMode",
			"backlightAutoDim", "earlyStartCfg", "roomSetpointAway", "roomSetpointMin", "roomSetpointMax"},
		fields: concat(wifiFields, roomTempDisplay(optional), wifiWattage(required), gfciStatus, gfciAlert,
			floorMode, auxHeat(required), floorSensor, output2(required),
			floorAirLimit(optional), floorLimitHigh(optional), floorLimitLow(optional)),
	},
	{
		Name:   "hc",
		Models: []int{1134},
		Caps:   Capabilities{HC: true},
		attributes: []string{"config2ndDisplay", "rssi", "coolSetpoint", "coolSetpointMin", "coolSetpointMax",
			"systemMode", "cycleLength", "loadConnected", "backlightAdaptive", "lockKeypad", "hcDevice",
			"errorCodeSet1", "language", "model", "fanSpeed", "fanSwingVertical", "fanSwingHorizontal",
			"fanCapabilities", "fanSwingCapability", "fanSwingCapabilityHorizontal", "fanSwingCapabilityVertical",
			"balancePoint", "heatLockTemperature", "coolLockTemperature", "availableMode"},
		fields: concat(zigbeeFields, wattage, rssi,
			num("cycleLength", required, func(s *State, v float64) { s.CycleLength = v }),
			num("coolSetpoint", required, func(s *State, v float64) { s.CoolTarget = v }),
			num("coolSetpointMin", required, func(s *State, v float64) { s.CoolMin = v }),
			num("coolSetpointMax", required, func(s *State, v float64) { s.CoolMax = v }),
			str("hcDevice", required, func(s *State, v string) { s.HCDevice = v }),
			str("language", required, func(s *State, v string) { s.Language = v }),
			str("model", required, func(s *State, v string) { s.HCModel = v }),
			str("fanSpeed", required, func(s *State, v string) { s.FanSpeed = v }),
			str("fanSwingVertical", required, func(s *State, v string) { s.FanSwingVert = v }),
			str("fanSwingHorizontal", required, func(s *State, v string) { s.FanSwingHoriz = v }),
			str("fanCapabilities", required, func(s *State, v string) { s.FanCap = v }),
			str("fanSwingCapability", required, func(s *State, v string) { s.FanSwingCap = v }),
			str("fanSwingCapabilityVertical", required, func(s *State, v string) { s.FanSwingCapVert = v }),
			str("fanSwingCapabilityHorizontal", required, func(s *State, v string) { s.FanSwingCapHoriz = v }),
			num("balancePoint", required, func(s *State, v float64) { s.BalancePoint = v }),
			num("heatLockTemperature", required, func(s *State, v float64) { s.HeatLockTemp = v }),
			num("coolLockTemperature", required, func(s *State, v float64) { s.CoolLockTemp = v }),
			str("availableMode", required, func(s *State, v string) { s.AvailableMode = v }),
		),
	},
}

// Low voltage pump protection values are only meaningful while the duration
// status is on. The period field must follow the duration field.
var pumpProtectLowVoltage = field{
	attr: "pumpProtectDuration",
	apply: func(s *State, raw json.RawMessage) error {
		var d statusValue
		if err := json.Unmarshal(raw, &d); err != nil {
			return err
		}
		s.PumpProtectStatus = string(d.Status)
		if d.Status == "on" {
			s.PumpProtectDuration = d.Value.Value
		}
		return nil
	},
}

var pumpPeriodLowVoltage = spec("pumpProtectPeriod", optional, func(s *State, v statusValue) {
	if s.PumpProtectStatus == "on" {
		s.PumpProtectPeriod = v.Value.Value
	}
})

func concat(base []field, extra ...field) []field {
	return slices.Concat(commonFields, base, extra)
}

// sensorCodes returns the errorCodeSet1 keys for a family's capabilities.
func sensorCodes(c Capabilities) []string {
	codes := []string{"compensationSensor", "thermalOverload"}
	if c.Floor && !c.WifiFloor {
		codes = append(codes, "floorSensor", "gfciBase")
	}
	if c.LowVoltage || c.Double {
		codes = append(codes, "airSensor", "floorSensor")
	} else {
		codes = append(codes, "wireSensor", "currentOverload", "endOfLife")
	}
	if c.Gen2 {
		codes = append(codes, "airTopSensor", "airBottomSensor", "lineError", "inductiveMode")
	} else {
		codes = append(codes, "airSensor", "loadError", "referenceSensor")
	}
	return dedupe(codes)
}

func dedupe(in []string) []string {
	out := in[:0]
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

var byModel = func() map[int]*Family {
	m := make(map[int]*Family)
	for _, f := range Families {
		for _, model := range f.Models {
			m[model] = f
		}
	}
	return m
}()

// FamilyForModel returns the family of a device model, or nil when the model
// is not a supported thermostat.
func FamilyForModel(model int) *Family {
	return byModel[model]
}

