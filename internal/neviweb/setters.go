package neviweb

import "context"

// Attribute names written by the setters.
const (
	AttrSetpointMode      = "setpointMode"
	AttrSystemMode        = "systemMode"
	AttrOccupancyMode     = "occupancyMode"
	AttrRoomSetpoint      = "roomSetpoint"
	AttrRoomSetpointMin   = "roomSetpointMin"
	AttrRoomSetpointMax   = "roomSetpointMax"
	AttrCoolSetpointMin   = "coolSetpointMin"
	AttrCoolSetpointMax   = "coolSetpointMax"
	AttrSecondDisplay     = "config2ndDisplay"
	AttrBacklight         = "backlightAdaptive"
	AttrBacklightAutoDim  = "backlightAutoDim"
	AttrKeypad            = "lockKeypad"
	AttrWifiKeypad        = "keyboardLock"
	AttrTimeFormat        = "timeFormat"
	AttrTemperatureFormat = "temperatureFormat"
	AttrAirFloorMode      = "airFloorMode"
	AttrFloorAirLimit     = "floorMaxAirTemperature"
	AttrEarlyStart        = "earlyStartCfg"
	AttrDRStatus          = "drStatus"
	AttrDRSetpoint        = "drSetpoint"
	AttrAuxHeatConfig     = "auxHeatConfig"
	AttrAuxCycleLength    = "auxCycleLength"
	AttrCycleLength       = "cycleLength"
	AttrCycleOutput2      = "cycleLengthOutput2"
	AttrLoadOutput2       = "loadWattOutput2"
	AttrPumpProtection    = "pumpProtection"
	AttrPumpDuration      = "pumpProtectDuration"
	AttrPumpPeriod        = "pumpProtectPeriod"
	AttrFloorSensorType   = "floorSensorType"
	AttrFloorLimitLow     = "floorLimitLow"
	AttrFloorLimitHigh    = "floorLimitHigh"
)

// AuxKind selects how the auxiliary heat output is driven.
type AuxKind string

const (
	AuxLowVoltage AuxKind = "voltage"
	AuxLowWifi    AuxKind = "wifi"
	AuxFloor      AuxKind = "floor"
)

type statusValue struct {
	Status string `json:"status"`
	Value  any    `json:"value"`
}

// SetSetpointMode changes the operating mode. Wi-Fi thermostats take a
// setpointMode where heat is spelled "manual".
func (c *Client) SetSetpointMode(ctx context.Context, id int, mode string, wifi bool) error {
	if !wifi {
		return c.SetAttributes(ctx, id, map[string]any{AttrSystemMode: mode})
	}
	if mode == "heat" {
		mode = "manual"
	}
	return c.SetAttributes(ctx, id, map[string]any{AttrSetpointMode: mode})
}

func (c *Client) SetOccupancyMode(ctx context.Context, id int, mode string) error {
	return c.SetAttributes(ctx, id, map[string]any{AttrOccupancyMode: mode})
}

func (c *Client) SetTemperature(ctx context.Context, id int, temp float64) error {
	return c.SetAttributes(ctx, id, map[string]any{AttrRoomSetpoint: temp})
}

func (c *Client) SetSecondDisplay(ctx context.Context, id int, display string) error {
	return c.SetAttributes(ctx, id, map[string]any{AttrSecondDisplay: display})
}

func (c *Client) SetBacklight(ctx context.Context, id int, level string, wifi bool) error {
	attr := AttrBacklight
	if wifi {
		attr = AttrBacklightAutoDim
	}
	return c.SetAttributes(ctx, id, map[string]any{attr: level})
}

func (c *Client) SetKeypadLock(ctx context.Context, id int, lock string, wifi bool) error {
	attr := AttrKeypad
	if wifi {
		attr = AttrWifiKeypad
	}
	return c.SetAttributes(ctx, id, map[string]any{attr: lock})
}

func (c *Client) SetTimeFormat(ctx context.Context, id int, format string) error {
	return c.SetAttributes(ctx, id, map[string]any{AttrTimeFormat: format})
}

func (c *Client) SetTemperatureFormat(ctx context.Context, id int, format string) error {
	return c.SetAttributes(ctx, id, map[string]any{AttrTemperatureFormat: format})
}

func (c *Client) SetAirFloorMode(ctx context.Context, id int, mode string) error {
	return c.SetAttributes(ctx, id, map[string]any{AttrAirFloorMode: mode})
}

func (c *Client) SetSetpointMax(ctx context.Context, id int, temp float64) error {
	return c.SetAttributes(ctx, id, map[string]any{AttrRoomSetpointMax: temp})
}

func (c *Client) SetSetpointMin(ctx context.Context, id int, temp float64) error {
	return c.SetAttributes(ctx, id, map[string]any{AttrRoomSetpointMin: temp})
}

func (c *Client) SetCoolSetpointMax(ctx context.Context, id int, temp float64) error {
	return c.SetAttributes(ctx, id, map[string]any{AttrCoolSetpointMax: temp})
}

func (c *Client) SetCoolSetpointMin(ctx context.Context, id int, temp float64) error {
	return c.SetAttributes(ctx, id, map[string]any{AttrCoolSetpointMin: temp})
}

func (c *Client) SetFloorAirLimit(ctx context.Context, id int, status string, temp float64) error {
	return c.SetAttributes(ctx, id, map[string]any{AttrFloorAirLimit: statusValue{Status: status, Value: temp}})
}

func (c *Client) SetEarlyStart(ctx context.Context, id int, start string) error {
	return c.SetAttributes(ctx, id, map[string]any{AttrEarlyStart: start})
}

// SetHvacDROptions configures Eco Sinope demand response participation.
func (c *Client) SetHvacDROptions(ctx context.Context, id int, drActive, optOut, setpoint string) error {
	return c.SetAttributes(ctx, id, map[string]any{AttrDRStatus: map[string]string{
		"drActive": drActive,
		"optOut":   optOut,
		"setpoint": setpoint,
	}})
}

func (c *Client) SetHvacDRSetpoint(ctx context.Context, id int, status string, value float64) error {
	return c.SetAttributes(ctx, id, map[string]any{AttrDRSetpoint: statusValue{Status: status, Value: value}})
}

// SetAuxHeat drives the auxiliary output. value is "on"/"off" for low
// voltage, "slave"/"off" for floor thermostats and ignored for low voltage
// Wi-Fi where seconds is the aux cycle length (0 turns it off).
func (c *Client) SetAuxHeat(ctx context.Context, id int, value string, kind AuxKind, seconds int) error {
	switch kind {
	case AuxLowVoltage:
		return c.SetAttributes(ctx, id, map[string]any{AttrCycleOutput2: statusValue{Status: value, Value: seconds}})
	case AuxLowWifi:
		return c.SetAttributes(ctx, id, map[string]any{AttrAuxCycleLength: seconds})
	default:
		return c.SetAttributes(ctx, id, map[string]any{AttrAuxHeatConfig: value})
	}
}

func (c *Client) SetAuxiliaryLoad(ctx context.Context, id int, status string, load float64) error {
	return c.SetAttributes(ctx, id, map[string]any{AttrLoadOutput2: statusValue{Status: status, Value: load}})
}

func (c *Client) SetAuxCycleOutput(ctx context.Context, id int, status string, seconds int) error {
	return c.SetAttributes(ctx, id, map[string]any{AttrCycleOutput2: statusValue{Status: status, Value: seconds}})
}

func (c *Client) SetCycleOutput(ctx context.Context, id int, seconds int) error {
	return c.SetAttributes(ctx, id, map[string]any{AttrCycleLength: seconds})
}

// SetPumpProtection toggles pump protection with a fixed 60 s run every day.
func (c *Client) SetPumpProtection(ctx context.Context, id int, status string, lowWifi bool) error {
	if lowWifi {
		return c.SetAttributes(ctx, id, map[string]any{AttrPumpProtection: map[string]any{
			"status":    status,
			"frequency": 1,
			"duration":  60,
		}})
	}
	if status != "on" {
		return c.SetAttributes(ctx, id, map[string]any{AttrPumpDuration: map[string]string{"status": "off"}})
	}
	return c.SetAttributes(ctx, id, map[string]any{
		AttrPumpDuration: statusValue{Status: "on", Value: 60},
		AttrPumpPeriod:   statusValue{Status: "on", Value: 1},
	})
}

func (c *Client) SetSensorType(ctx context.Context, id int, sensor string) error {
	return c.SetAttributes(ctx, id, map[string]any{AttrFloorSensorType: sensor})
}

// SetFloorLimit sets the low or high floor limit. A zero temperature turns
// the limit off.
func (c *Client) SetFloorLimit(ctx context.Context, id int, temp float64, high bool) error {
	attr := AttrFloorLimitLow
	if high {
		attr = AttrFloorLimitHigh
	}
	v := statusValue{Status: "on", Value: temp}
	if temp == 0 {
		v = statusValue{Status: "off", Value: nil}
	}
	return c.SetAttributes(ctx, id, map[string]any{attr: v})
}
