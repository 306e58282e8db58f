package thermostat

import (
	"context"
	"fmt"

	"neviweb-go-home/internal/neviweb"
)

// HVAC modes and presets understood by the setters.
const (
	ModeOff        = "off"
	ModeHeat       = "heat"
	ModeCool       = "cool"
	ModeAuto       = "auto"
	ModeAutoBypass = "autoBypass"
	ModeManual     = "manual"

	PresetNone = "none"
	PresetAway = "away"
	PresetHome = "home"
)

// Setters forward a single call to Neviweb and then record the requested
// value in the local state whatever the outcome of that call. The next poll
// reconciles the state with the device. A failed call is still returned so
// the caller can report it.
func (t *Thermostat) echo(op string, err error, apply func(*State)) error {
	t.mu.Lock()
	apply(&t.state)
	t.mu.Unlock()
	if err != nil {
		t.logger.Warn("command failed", "op", op, "err", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// TurnOn puts the thermostat in heat mode.
func (t *Thermostat) TurnOn(ctx context.Context) error {
	err := t.client.SetSetpointMode(ctx, t.id, ModeHeat, t.family.Caps.Wifi)
	return t.echo("turn_on", err, func(s *State) { s.OperationMode = ModeHeat })
}

// TurnOff puts the thermostat in off mode.
func (t *Thermostat) TurnOff(ctx context.Context) error {
	err := t.client.SetSetpointMode(ctx, t.id, ModeOff, t.family.Caps.Wifi)
	return t.echo("turn_off", err, func(s *State) { s.OperationMode = ModeOff })
}

// SetTemperature sets the target temperature. A nil temperature is a no-op.
func (t *Thermostat) SetTemperature(ctx context.Context, temp *float64) error {
	if temp == nil {
		return nil
	}
	v := *temp
	err := t.client.SetTemperature(ctx, t.id, v)
	return t.echo("set_temperature", err, func(s *State) { s.TargetTemp = v })
}

// SetSecondDisplay picks what the second display line shows: the setpoint
// or, with "outsideTemperature", the outside temperature.
func (t *Thermostat) SetSecondDisplay(ctx context.Context, display string) error {
	name := "Setpoint"
	if display == "outsideTemperature" {
		name = "Outside"
	}
	err := t.client.SetSecondDisplay(ctx, t.id, display)
	return t.echo("set_second_display", err, func(s *State) { s.SecondDisplay = name })
}

// SetBacklight sets the backlight mode: "on", "bedroom" or anything else for
// auto. wifi selects the Wi-Fi vocabulary.
func (t *Thermostat) SetBacklight(ctx context.Context, level string, wifi bool) error {
	var command, name string
	switch level {
	case "on":
		command, name = "always", "On"
		if wifi {
			command = "alwaysOn"
		}
	case "bedroom":
		command, name = "bedroom", "bedroom"
	default:
		command, name = "onActive", "Auto"
		if wifi {
			command = "onUserAction"
		}
	}
	err := t.client.SetBacklight(ctx, t.id, command, wifi)
	return t.echo("set_backlight", err, func(s *State) { s.Backlight = name })
}

// SetKeypadLock locks or unlocks the keypad. Wi-Fi models take the
// lock/unlock/partialLock vocabulary.
func (t *Thermostat) SetKeypadLock(ctx context.Context, lock string) error {
	wifi := t.family.Caps.Wifi
	if wifi {
		lock = wifiKeypad(lock)
	}
	err := t.client.SetKeypadLock(ctx, t.id, lock, wifi)
	return t.echo("set_keypad_lock", err, func(s *State) { s.Keypad = lock })
}

// SetTimeFormat takes 12 or 24.
func (t *Thermostat) SetTimeFormat(ctx context.Context, hours int) error {
	format := "24h"
	if hours == 12 {
		format = "12h"
	}
	err := t.client.SetTimeFormat(ctx, t.id, format)
	return t.echo("set_time_format", err, func(s *State) { s.TimeFormat = format })
}

// SetTemperatureFormat sets celsius or fahrenheit on the display.
func (t *Thermostat) SetTemperatureFormat(ctx context.Context, format string) error {
	err := t.client.SetTemperatureFormat(ctx, t.id, format)
	return t.echo("set_temperature_format", err, func(s *State) { s.TemperatureFormat = format })
}

// SetAirFloorMode selects the air or floor sensor for regulation.
func (t *Thermostat) SetAirFloorMode(ctx context.Context, mode string) error {
	err := t.client.SetAirFloorMode(ctx, t.id, mode)
	return t.echo("set_air_floor_mode", err, func(s *State) { s.FloorMode = mode })
}

// SetSetpointMax sets the maximum heating setpoint.
func (t *Thermostat) SetSetpointMax(ctx context.Context, temp float64) error {
	err := t.client.SetSetpointMax(ctx, t.id, temp)
	return t.echo("set_setpoint_max", err, func(s *State) { s.MaxTemp = temp })
}

// SetSetpointMin sets the minimum heating setpoint.
func (t *Thermostat) SetSetpointMin(ctx context.Context, temp float64) error {
	err := t.client.SetSetpointMin(ctx, t.id, temp)
	return t.echo("set_setpoint_min", err, func(s *State) { s.MinTemp = temp })
}

// SetCoolSetpointMax sets the maximum cooling setpoint.
func (t *Thermostat) SetCoolSetpointMax(ctx context.Context, temp float64) error {
	err := t.client.SetCoolSetpointMax(ctx, t.id, temp)
	return t.echo("set_cool_setpoint_max", err, func(s *State) { s.CoolMax = temp })
}

// SetCoolSetpointMin sets the minimum cooling setpoint.
func (t *Thermostat) SetCoolSetpointMin(ctx context.Context, temp float64) error {
	err := t.client.SetCoolSetpointMin(ctx, t.id, temp)
	return t.echo("set_cool_setpoint_min", err, func(s *State) { s.CoolMin = temp })
}

// SetFloorAirLimit sets the maximum air temperature in floor mode; 0 turns
// the limit off.
func (t *Thermostat) SetFloorAirLimit(ctx context.Context, temp float64) error {
	status := "on"
	if temp == 0 {
		status = "off"
	}
	err := t.client.SetFloorAirLimit(ctx, t.id, status, temp)
	return t.echo("set_floor_air_limit", err, func(s *State) {
		v := temp
		s.FloorAirLimit = &v
		s.FloorAirLimitStatus = status
	})
}

// SetEarlyStart turns early start on or off.
func (t *Thermostat) SetEarlyStart(ctx context.Context, start string) error {
	err := t.client.SetEarlyStart(ctx, t.id, start)
	return t.echo("set_early_start", err, func(s *State) { s.EarlyStart = start })
}

// SetHvacDROptions sets the Eco Sinope demand response options.
func (t *Thermostat) SetHvacDROptions(ctx context.Context, drActive, optOut, setpoint string) error {
	err := t.client.SetHvacDROptions(ctx, t.id, drActive, optOut, setpoint)
	return t.echo("set_hvac_dr_options", err, func(s *State) {
		s.DRActive = drActive
		s.DROptOut = optOut
		s.DRSetpoint = setpoint
	})
}

// SetHvacDRSetpoint sets the demand response setpoint status and delta.
func (t *Thermostat) SetHvacDRSetpoint(ctx context.Context, status string, value float64) error {
	err := t.client.SetHvacDRSetpoint(ctx, t.id, status, value)
	return t.echo("set_hvac_dr_setpoint", err, func(s *State) {
		s.DRSetpointStatus = status
		s.DRSetpointValue = value
	})
}

// SetHvacMode changes the operating mode. autoBypass only applies while the
// thermostat is in auto. The requested mode is always echoed.
func (t *Thermostat) SetHvacMode(ctx context.Context, mode string) error {
	wifi := t.family.Caps.Wifi
	var err error
	switch mode {
	case ModeOff, ModeHeat, ModeManual, ModeAuto:
		err = t.client.SetSetpointMode(ctx, t.id, mode, wifi)
	case ModeAutoBypass:
		t.mu.Lock()
		current := t.state.OperationMode
		t.mu.Unlock()
		if current == ModeAuto {
			err = t.client.SetSetpointMode(ctx, t.id, ModeAutoBypass, wifi)
		}
	default:
		t.logger.Error("unable to set hvac mode", "mode", mode)
	}
	return t.echo("set_hvac_mode", err, func(s *State) { s.OperationMode = mode })
}

// SetPresetMode switches occupancy. none re-applies the current hvac mode.
func (t *Thermostat) SetPresetMode(ctx context.Context, preset string) error {
	st := t.State()
	if preset == presetMode(st) {
		return nil
	}
	var err error
	switch preset {
	case PresetAway, PresetHome:
		err = t.client.SetOccupancyMode(ctx, t.id, preset)
	case PresetNone:
		err = t.SetHvacMode(ctx, hvacMode(st))
	default:
		t.logger.Error("unable to set preset mode", "preset", preset)
	}
	return t.echo("set_preset_mode", err, func(s *State) { s.Occupancy = preset })
}

// TurnAuxHeatOn enables auxiliary heat: output 2 on low voltage models, the
// aux cycle on low voltage Wi-Fi, the slave relay otherwise.
func (t *Thermostat) TurnAuxHeatOn(ctx context.Context) error {
	caps := t.family.Caps
	st := t.State()
	var err error
	switch {
	case caps.LowVoltage:
		err = t.client.SetAuxHeat(ctx, t.id, "on", neviweb.AuxLowVoltage, int(st.CycleOutput2Value))
		return t.echo("turn_aux_heat_on", err, func(s *State) { s.CycleOutput2Status = "on" })
	case caps.LowWifi:
		err = t.client.SetAuxHeat(ctx, t.id, "on", neviweb.AuxLowWifi, int(st.AuxCycleLength))
		return t.echo("turn_aux_heat_on", err, func(*State) {})
	default:
		err = t.client.SetAuxHeat(ctx, t.id, "slave", neviweb.AuxFloor, 0)
		return t.echo("turn_aux_heat_on", err, func(s *State) { s.AuxHeat = "slave" })
	}
}

// TurnAuxHeatOff disables auxiliary heat.
func (t *Thermostat) TurnAuxHeatOff(ctx context.Context) error {
	caps := t.family.Caps
	var err error
	switch {
	case caps.LowVoltage:
		sec := int(t.State().CycleOutput2Value)
		err = t.client.SetAuxHeat(ctx, t.id, "off", neviweb.AuxLowVoltage, sec)
		return t.echo("turn_aux_heat_off", err, func(s *State) { s.CycleOutput2Status = "off" })
	case caps.LowWifi:
		err = t.client.SetAuxHeat(ctx, t.id, "off", neviweb.AuxLowWifi, 0)
		return t.echo("turn_aux_heat_off", err, func(s *State) { s.AuxCycleLength = 0 })
	default:
		err = t.client.SetAuxHeat(ctx, t.id, "off", neviweb.AuxFloor, 0)
		return t.echo("turn_aux_heat_off", err, func(s *State) { s.AuxHeat = "off" })
	}
}

// SetAuxiliaryLoad sets the status and wattage of the second load.
func (t *Thermostat) SetAuxiliaryLoad(ctx context.Context, status string, load float64) error {
	err := t.client.SetAuxiliaryLoad(ctx, t.id, status, load)
	return t.echo("set_auxiliary_load", err, func(s *State) {
		s.Load2Status = status
		s.Load2 = load
	})
}

// SetAuxCycleOutput sets the auxiliary output status and cycle length label.
func (t *Thermostat) SetAuxCycleOutput(ctx context.Context, status, period string) error {
	seconds, err := PeriodSeconds(period)
	if err != nil {
		return err
	}
	err = t.client.SetAuxCycleOutput(ctx, t.id, status, seconds)
	return t.echo("set_aux_cycle_output", err, func(s *State) {
		s.CycleOutput2Status = status
		s.CycleOutput2Value = float64(seconds)
	})
}

// SetCycleOutput sets the main output cycle length label.
func (t *Thermostat) SetCycleOutput(ctx context.Context, period string) error {
	seconds, err := PeriodSeconds(period)
	if err != nil {
		return err
	}
	err = t.client.SetCycleOutput(ctx, t.id, seconds)
	return t.echo("set_cycle_output", err, func(s *State) { s.CycleLength = float64(seconds) })
}

// SetPumpProtection turns pump protection on or off.
func (t *Thermostat) SetPumpProtection(ctx context.Context, status string) error {
	err := t.client.SetPumpProtection(ctx, t.id, status, t.family.Caps.LowWifi)
	return t.echo("set_pump_protection", err, func(s *State) {
		s.PumpProtectStatus = status
		s.PumpProtectDuration = 60
		s.PumpProtectPeriod = 1
	})
}

// SetSensorType sets the floor sensor type (10k or 12k).
func (t *Thermostat) SetSensorType(ctx context.Context, sensor string) error {
	err := t.client.SetSensorType(ctx, t.id, sensor)
	return t.echo("set_sensor_type", err, func(s *State) { s.FloorSensorType = sensor })
}

// SetFloorLimit sets the low or high floor temperature limit. Values below
// the device minimum (5 low, 7 high) are raised to it; 0 clears the limit.
func (t *Thermostat) SetFloorLimit(ctx context.Context, temp float64, high bool) error {
	minimum := 5.0
	if high {
		minimum = 7
	}
	if temp > 0 && temp < minimum {
		temp = minimum
	}
	err := t.client.SetFloorLimit(ctx, t.id, temp, high)
	return t.echo("set_floor_limit", err, func(s *State) {
		var v *float64
		if temp != 0 {
			v = &temp
		}
		if high {
			s.FloorMax, s.FloorMaxStatus = v, "on"
		} else {
			s.FloorMin, s.FloorMinStatus = v, "on"
		}
	})
}

// SetActivation enables or disables polling. A device disabled here stays
// disabled until re-enabled; it does not restart after SnoozeTime.
func (t *Thermostat) SetActivation(active bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = active
	t.held = !active
	t.snooze = t.now()
}
