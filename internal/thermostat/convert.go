package thermostat

import "fmt"

// periods maps the cycle length labels accepted by the services to seconds.
var periods = []struct {
	Label   string
	Seconds int
}{
	{"15 sec", 15},
	{"5 min", 300},
	{"10 min", 600},
	{"15 min", 900},
	{"20 min", 1200},
	{"25 min", 1500},
	{"30 min", 1800},
}

// PeriodSeconds converts a cycle length label such as "15 min" to seconds.
func PeriodSeconds(label string) (int, error) {
	for _, p := range periods {
		if p.Label == label {
			return p.Seconds, nil
		}
	}
	return 0, fmt.Errorf("unknown cycle period %q", label)
}

// PeriodLabel converts seconds back to a cycle length label. Unknown values
// are returned as plain seconds.
func PeriodLabel(seconds float64) string {
	for _, p := range periods {
		if float64(p.Seconds) == seconds {
			return p.Label
		}
	}
	return fmt.Sprintf("%g sec", seconds)
}

// PeriodLabels lists the accepted cycle length labels.
func PeriodLabels() []string {
	out := make([]string, len(periods))
	for i, p := range periods {
		out[i] = p.Label
	}
	return out
}

// LockDisplay renders a keypad lock value for display.
func LockDisplay(lock string) string {
	switch lock {
	case "locked", "lock":
		return "Locked"
	case "unlocked", "unlock":
		return "Unlocked"
	case "partiallyLocked", "partialLock":
		return "Tamper protection"
	default:
		return lock
	}
}

// TemperatureUnit returns the display unit for a temperatureFormat value.
func TemperatureUnit(format string) string {
	if format == "celsius" {
		return "°C"
	}
	return "°F"
}

func wifiKeypad(lock string) string {
	switch lock {
	case "locked":
		return "lock"
	case "partiallyLocked":
		return "partialLock"
	default:
		return "unlock"
	}
}
