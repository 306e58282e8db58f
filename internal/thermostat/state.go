package thermostat

import "maps"

// Energy is the last fetched energy statistics, in kWh.
type Energy struct {
	HourlyCount  *float64 `json:"hourly_kwh_count"`
	HourlyKWh    *float64 `json:"hourly_kwh"`
	DailyCount   *float64 `json:"daily_kwh_count"`
	DailyKWh     *float64 `json:"daily_kwh"`
	MonthlyCount *float64 `json:"monthly_kwh_count"`
	MonthlyKWh   *float64 `json:"monthly_kwh"`
}

// State holds the last polled values of a thermostat. Every field is either
// copied from the vendor payload or echoed from the last command sent.
type State struct {
	CurrentTemp       *float64 `json:"current_temperature"`
	TargetTemp        float64  `json:"target_temperature_raw"`
	MinTemp           float64  `json:"setpoint_min"`
	MaxTemp           float64  `json:"setpoint_max"`
	TargetTempAway    float64  `json:"target_temperature_away,omitempty"`
	TemperatureFormat string   `json:"temperature_format"`
	TimeFormat        string   `json:"time_format"`
	TempDisplayStatus string   `json:"temp_display_status,omitempty"`
	TempDisplayValue  any      `json:"temp_display_value,omitempty"`
	SecondDisplay     string   `json:"second_display"`
	HeatLevel         float64  `json:"heat_level"`
	HeatSourceType    string   `json:"heat_source_type,omitempty"`
	Keypad            string   `json:"keypad_raw"`
	Backlight         string   `json:"backlight"`
	OperationMode     string   `json:"operation_mode"`
	Occupancy         string   `json:"occupancy,omitempty"`
	EarlyStart        string   `json:"early_start,omitempty"`
	RSSI              any      `json:"rssi,omitempty"`

	CycleLength        float64 `json:"cycle_length"`
	AuxCycleLength     float64 `json:"aux_cycle_length,omitempty"`
	CycleOutput2Status string  `json:"aux_cycle_status,omitempty"`
	CycleOutput2Value  float64 `json:"aux_cycle_value,omitempty"`

	Wattage     float64 `json:"wattage"`
	Load1       any     `json:"load_watt_output1,omitempty"`
	Load2       float64 `json:"auxiliary_load,omitempty"`
	Load2Status string  `json:"auxiliary_status,omitempty"`
	AuxHeat     string  `json:"auxiliary_heat,omitempty"`

	GFCIStatus          string   `json:"gfci_status,omitempty"`
	GFCIAlert           string   `json:"gfci_alert,omitempty"`
	FloorMode           string   `json:"sensor_mode,omitempty"`
	FloorSensorType     string   `json:"floor_sensor_type,omitempty"`
	FloorAirLimit       *float64 `json:"floor_air_limit,omitempty"`
	FloorAirLimitStatus string   `json:"floor_air_limit_status,omitempty"`
	FloorMax            *float64 `json:"floor_setpoint_max,omitempty"`
	FloorMaxStatus      string   `json:"floor_setpoint_max_status,omitempty"`
	FloorMin            *float64 `json:"floor_setpoint_low,omitempty"`
	FloorMinStatus      string   `json:"floor_setpoint_low_status,omitempty"`

	PumpProtectStatus   string  `json:"pump_protection_status,omitempty"`
	PumpProtectDuration float64 `json:"pump_protection_duration,omitempty"`
	PumpProtectPeriod   float64 `json:"pump_protection_frequency,omitempty"`

	ColdLoadPickup  string  `json:"cold_load_pickup,omitempty"`
	HeatLockoutTemp float64 `json:"heat_lockout_temp,omitempty"`

	CoolTarget       float64 `json:"cool_setpoint,omitempty"`
	CoolMin          float64 `json:"cool_setpoint_min,omitempty"`
	CoolMax          float64 `json:"cool_setpoint_max,omitempty"`
	HCDevice         string  `json:"hc_device,omitempty"`
	Language         string  `json:"language,omitempty"`
	HCModel          string  `json:"hc_model,omitempty"`
	FanSpeed         string  `json:"fan_speed,omitempty"`
	FanSwingVert     string  `json:"fan_swing_vertical,omitempty"`
	FanSwingHoriz    string  `json:"fan_swing_horizontal,omitempty"`
	FanCap           string  `json:"fan_capability,omitempty"`
	FanSwingCap      string  `json:"fan_swing_capability,omitempty"`
	FanSwingCapVert  string  `json:"fan_swing_capability_vertical,omitempty"`
	FanSwingCapHoriz string  `json:"fan_swing_capability_horizontal,omitempty"`
	BalancePoint     float64 `json:"balance_point,omitempty"`
	HeatLockTemp     float64 `json:"heat_lock_temp,omitempty"`
	CoolLockTemp     float64 `json:"cool_lock_temp,omitempty"`
	AvailableMode    string  `json:"available_mode,omitempty"`

	DRActive         string  `json:"eco_status"`
	DROptOut         string  `json:"eco_optOut"`
	DRSetpoint       string  `json:"eco_setpoint"`
	DRPowerAbsolute  string  `json:"eco_power_absolute"`
	DRPowerRelative  string  `json:"eco_power_relative"`
	DRSetpointStatus string  `json:"eco_setpoint_status"`
	DRSetpointValue  float64 `json:"eco_setpoint_delta"`

	SensorCodes map[string]any `json:"sensor_codes,omitempty"`
	Energy      Energy         `json:"energy"`
}

func initialState() State {
	return State{
		TemperatureFormat:  "celsius",
		TimeFormat:         "24h",
		AuxHeat:            "off",
		CycleOutput2Status: "off",
		FloorMaxStatus:     "off",
		FloorMinStatus:     "off",
		DRActive:           "off",
		DROptOut:           "off",
		DRSetpoint:         "off",
		DRPowerAbsolute:    "off",
		DRPowerRelative:    "off",
		DRSetpointStatus:   "off",
	}
}

func (s State) clone() State {
	out := s
	out.SensorCodes = maps.Clone(s.SensorCodes)
	return out
}
