package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"neviweb-go-home/internal/thermostat"
)

// Args are the flat key/value arguments of a service call, as decoded from
// JSON or a Lua table.
type Args map[string]any

func (a Args) value(key string) (any, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, fmt.Errorf("missing %q: %w", key, ErrInvalidArgument)
	}
	return v, nil
}

// String returns a string argument. Numbers and booleans are formatted.
func (a Args) String(key string) (string, error) {
	v, err := a.value(key)
	if err != nil {
		return "", err
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(x), nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	}
	return "", fmt.Errorf("%q: unexpected %T: %w", key, v, ErrInvalidArgument)
}

// Float returns a numeric argument. Numeric strings are accepted.
func (a Args) Float(key string) (float64, error) {
	v, err := a.value(key)
	if err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("%q: %w", key, ErrInvalidArgument)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("%q: not a number: %w", key, ErrInvalidArgument)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%q: unexpected %T: %w", key, v, ErrInvalidArgument)
}

// Bool returns a boolean argument. "on"/"off" and numbers are accepted.
func (a Args) Bool(key string) (bool, error) {
	v, err := a.value(key)
	if err != nil {
		return false, err
	}
	switch x := v.(type) {
	case bool:
		return x, nil
	case float64:
		return x != 0, nil
	case json.Number:
		f, err := x.Float64()
		if err == nil {
			return f != 0, nil
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "on", "true", "1", "yes":
			return true, nil
		case "off", "false", "0", "no":
			return false, nil
		}
	}
	return false, fmt.Errorf("%q: not a boolean: %w", key, ErrInvalidArgument)
}

// Service is a named operation on a thermostat.
type Service struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Fields      []string `json:"fields"`

	supports func(thermostat.Capabilities) bool
	call     func(ctx context.Context, th *thermostat.Thermostat, args Args) error
}

// Supports reports whether the service applies to a device family.
func (s *Service) Supports(c thermostat.Capabilities) bool {
	return s.supports == nil || s.supports(c)
}

func stringService(name, desc, key string, set func(*thermostat.Thermostat, context.Context, string) error) *Service {
	return &Service{
		Name: name, Description: desc, Fields: []string{key},
		call: func(ctx context.Context, th *thermostat.Thermostat, args Args) error {
			v, err := args.String(key)
			if err != nil {
				return err
			}
			return set(th, ctx, v)
		},
	}
}

func floatService(name, desc, key string, set func(*thermostat.Thermostat, context.Context, float64) error) *Service {
	return &Service{
		Name: name, Description: desc, Fields: []string{key},
		call: func(ctx context.Context, th *thermostat.Thermostat, args Args) error {
			v, err := args.Float(key)
			if err != nil {
				return err
			}
			return set(th, ctx, v)
		},
	}
}

func noArgService(name, desc string, fn func(*thermostat.Thermostat, context.Context) error) *Service {
	return &Service{
		Name: name, Description: desc,
		call: func(ctx context.Context, th *thermostat.Thermostat, _ Args) error {
			return fn(th, ctx)
		},
	}
}

func only(s *Service, supports func(thermostat.Capabilities) bool) *Service {
	s.supports = supports
	return s
}

func isHC(c thermostat.Capabilities) bool       { return c.HC }
func isWifi(c thermostat.Capabilities) bool     { return c.Wifi }
func hasPump(c thermostat.Capabilities) bool    { return c.LowVoltage || c.LowWifi }
func hasOutput2(c thermostat.Capabilities) bool { return c.LowVoltage }

// cyclePeriods lists the accepted cycle length values for descriptions.
var cyclePeriods = strings.Join(thermostat.PeriodLabels(), ", ")

var services = []*Service{
	stringService("set_second_display", "Show the outside temperature or the setpoint on the second display.",
		"config2ndDisplay", (*thermostat.Thermostat).SetSecondDisplay),
	{
		Name: "set_backlight", Description: "Set the backlight to on, bedroom or auto.",
		Fields: []string{"backlightAdaptive", "type"},
		call: func(ctx context.Context, th *thermostat.Thermostat, args Args) error {
			level, err := args.String("backlightAdaptive")
			if err != nil {
				return err
			}
			wifi := th.Caps().Wifi
			if kind, err := args.String("type"); err == nil {
				wifi = kind == "wifi"
			}
			return th.SetBacklight(ctx, level, wifi)
		},
	},
	stringService("set_climate_keypad_lock", "Lock, unlock or tamper-protect the keypad.",
		"lockKeypad", (*thermostat.Thermostat).SetKeypadLock),
	{
		Name: "set_time_format", Description: "Show time in 12h or 24h format.",
		Fields: []string{"timeFormat"},
		call: func(ctx context.Context, th *thermostat.Thermostat, args Args) error {
			v, err := args.String("timeFormat")
			if err != nil {
				return err
			}
			hours := 24
			if strings.HasPrefix(v, "12") {
				hours = 12
			}
			return th.SetTimeFormat(ctx, hours)
		},
	},
	stringService("set_temperature_format", "Show temperatures in celsius or fahrenheit.",
		"temperatureFormat", (*thermostat.Thermostat).SetTemperatureFormat),
	floatService("set_setpoint_max", "Set the maximum setpoint.",
		"roomSetpointMax", (*thermostat.Thermostat).SetSetpointMax),
	floatService("set_setpoint_min", "Set the minimum setpoint.",
		"roomSetpointMin", (*thermostat.Thermostat).SetSetpointMin),
	floatService("set_floor_air_limit", "Set the maximum air temperature in floor mode, 0 to disable.",
		"floorMaxAirTemperature", (*thermostat.Thermostat).SetFloorAirLimit),
	only(stringService("set_early_start", "Turn early start on or off.",
		"earlyStartCfg", (*thermostat.Thermostat).SetEarlyStart), isWifi),
	stringService("set_air_floor_mode", "Regulate on the ambient or the floor sensor.",
		"airFloorMode", (*thermostat.Thermostat).SetAirFloorMode),
	{
		Name: "set_hvac_dr_options", Description: "Set the Eco Sinope demand response options.",
		Fields: []string{"drActive", "optOut", "setpoint"},
		call: func(ctx context.Context, th *thermostat.Thermostat, args Args) error {
			dr, err := args.String("drActive")
			if err != nil {
				return err
			}
			optOut, err := args.String("optOut")
			if err != nil {
				return err
			}
			setpoint, err := args.String("setpoint")
			if err != nil {
				return err
			}
			return th.SetHvacDROptions(ctx, dr, optOut, setpoint)
		},
	},
	{
		Name: "set_hvac_dr_setpoint", Description: "Set the Eco Sinope demand response setpoint delta.",
		Fields: []string{"status", "value"},
		call: func(ctx context.Context, th *thermostat.Thermostat, args Args) error {
			status, err := args.String("status")
			if err != nil {
				return err
			}
			value, err := args.Float("value")
			if err != nil {
				return err
			}
			return th.SetHvacDRSetpoint(ctx, status, value)
		},
	},
	only(floatService("set_cool_setpoint_max", "Set the maximum cooling setpoint.",
		"coolSetpointMax", (*thermostat.Thermostat).SetCoolSetpointMax), isHC),
	only(floatService("set_cool_setpoint_min", "Set the minimum cooling setpoint.",
		"coolSetpointMin", (*thermostat.Thermostat).SetCoolSetpointMin), isHC),
	{
		Name: "set_auxiliary_load", Description: "Set the auxiliary load status and wattage.",
		Fields: []string{"status", "value"},
		call: func(ctx context.Context, th *thermostat.Thermostat, args Args) error {
			status, err := args.String("status")
			if err != nil {
				return err
			}
			value, err := args.Float("value")
			if err != nil {
				return err
			}
			return th.SetAuxiliaryLoad(ctx, status, value)
		},
	},
	only(&Service{
		Name: "set_aux_cycle_output", Description: "Set the auxiliary output status and cycle length (" + cyclePeriods + ").",
		Fields: []string{"status", "value"},
		call: func(ctx context.Context, th *thermostat.Thermostat, args Args) error {
			status, err := args.String("status")
			if err != nil {
				return err
			}
			period, err := args.String("value")
			if err != nil {
				return err
			}
			return th.SetAuxCycleOutput(ctx, status, period)
		},
	}, hasOutput2),
	stringService("set_cycle_output", "Set the main output cycle length ("+cyclePeriods+").",
		"value", (*thermostat.Thermostat).SetCycleOutput),
	only(stringService("set_pump_protection", "Turn pump protection on or off.",
		"status", (*thermostat.Thermostat).SetPumpProtection), hasPump),
	floatService("set_floor_limit_low", "Set the minimum floor temperature, 0 to disable.",
		"floorLimitLow", func(th *thermostat.Thermostat, ctx context.Context, v float64) error {
			return th.SetFloorLimit(ctx, v, false)
		}),
	floatService("set_floor_limit_high", "Set the maximum floor temperature, 0 to disable.",
		"floorLimitHigh", func(th *thermostat.Thermostat, ctx context.Context, v float64) error {
			return th.SetFloorLimit(ctx, v, true)
		}),
	{
		Name: "set_activation", Description: "Enable or disable Neviweb polling for the device.",
		Fields: []string{"active"},
		call: func(_ context.Context, th *thermostat.Thermostat, args Args) error {
			active, err := args.Bool("active")
			if err != nil {
				return err
			}
			th.SetActivation(active)
			return nil
		},
	},
	stringService("set_sensor_type", "Set the floor sensor type (10k or 12k).",
		"floorSensorType", (*thermostat.Thermostat).SetSensorType),

	noArgService("turn_on", "Switch the thermostat to heat.", (*thermostat.Thermostat).TurnOn),
	noArgService("turn_off", "Switch the thermostat off.", (*thermostat.Thermostat).TurnOff),
	{
		Name: "set_temperature", Description: "Set the target temperature.",
		Fields: []string{"temperature"},
		call: func(ctx context.Context, th *thermostat.Thermostat, args Args) error {
			if _, ok := args["temperature"]; !ok {
				return th.SetTemperature(ctx, nil)
			}
			v, err := args.Float("temperature")
			if err != nil {
				return err
			}
			return th.SetTemperature(ctx, &v)
		},
	},
	stringService("set_hvac_mode", "Set the operating mode.", "hvac_mode", (*thermostat.Thermostat).SetHvacMode),
	stringService("set_preset_mode", "Set the occupancy preset.", "preset_mode", (*thermostat.Thermostat).SetPresetMode),
	noArgService("turn_aux_heat_on", "Turn auxiliary heat on.", (*thermostat.Thermostat).TurnAuxHeatOn),
	noArgService("turn_aux_heat_off", "Turn auxiliary heat off.", (*thermostat.Thermostat).TurnAuxHeatOff),
}

var serviceIndex = func() map[string]*Service {
	m := make(map[string]*Service, len(services))
	for _, s := range services {
		m[s.Name] = s
	}
	return m
}()

// Services lists every service, sorted by name.
func Services() []Service {
	out := make([]Service, 0, len(services))
	for _, s := range services {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b Service) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// LookupService returns a service by name.
func LookupService(name string) (*Service, error) {
	s, ok := serviceIndex[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownService)
	}
	return s, nil
}

// Call runs a service on a device and publishes the echoed state. The echo
// happens even when the vendor call fails; that error is returned.
func (c *Coordinator) Call(ctx context.Context, id int, name string, args Args) error {
	e, err := c.entry(id)
	if err != nil {
		return err
	}
	svc, err := LookupService(name)
	if err != nil {
		return err
	}
	if !svc.Supports(e.th.Caps()) {
		return fmt.Errorf("%s on %s: %w", name, e.th.Name(), ErrNotSupported)
	}
	if args == nil {
		args = Args{}
	}

	c.logger.Info("service call", "service", name, "device", e.th.Name(), "args", map[string]any(args))
	callErr := svc.call(ctx, e.th, args)
	c.events.Emit(Event{Type: EventServiceCall, Data: map[string]any{
		"id":      id,
		"service": name,
		"args":    args,
		"ok":      callErr == nil,
	}})
	c.events.Emit(Event{Type: EventStateUpdate, Data: c.snapshot(id)})
	return callErr
}
