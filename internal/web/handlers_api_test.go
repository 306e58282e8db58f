package web

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"testing"

	"neviweb-go-home/internal/coordinator"
	"neviweb-go-home/internal/neviweb"
	"neviweb-go-home/internal/neviweb/neviwebtest"
)

func TestAPIListDevices(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, "GET", "/api/devices", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	devices := decode[[]map[string]any](t, w)
	if len(devices) != 2 {
		t.Fatalf("devices = %d, want 2", len(devices))
	}
	if devices[0]["name"] != "neviweb130 climate Living" || devices[0]["network"] != "Home" {
		t.Errorf("first device = %v", devices[0])
	}
	if devices[0]["current_temperature"] != 21.5 {
		t.Errorf("current_temperature = %v", devices[0]["current_temperature"])
	}
}

func TestAPIGetDevice(t *testing.T) {
	env := setupTestServer(t)

	for _, ref := range []string{"101", "neviweb130_climate_living"} {
		w := env.do(t, "GET", "/api/devices/"+ref, "")
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d", ref, w.Code)
			continue
		}
		if id := decode[map[string]any](t, w)["id"]; id != float64(101) {
			t.Errorf("%s: id = %v", ref, id)
		}
	}
	if w := env.do(t, "GET", "/api/devices/999", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown: status = %d, want 404", w.Code)
	}
}

func TestAPIRenameDevice(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, "PATCH", "/api/devices/101", `{"friendly_name":"Salon"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if got := decode[map[string]any](t, w)["friendly_name"]; got != "Salon" {
		t.Errorf("friendly_name = %v", got)
	}
	if w := env.do(t, "GET", "/api/devices/salon", ""); w.Code != http.StatusOK {
		t.Errorf("lookup by new slug: status = %d", w.Code)
	}
	if w := env.do(t, "PATCH", "/api/devices/101", `{`); w.Code != http.StatusBadRequest {
		t.Errorf("bad body: status = %d, want 400", w.Code)
	}
}

func TestAPIPollDevice(t *testing.T) {
	env := setupTestServer(t)
	env.api.SetAttributes(101, strings.Replace(neviwebtest.LivingAttributes, `{"value": 21.5}`, `{"value": 18}`, 1))

	w := env.do(t, "POST", "/api/devices/101/poll", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if got := decode[map[string]any](t, w)["current_temperature"]; got != float64(18) {
		t.Errorf("current_temperature = %v, want 18", got)
	}
}

func TestAPICallService(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, "POST", "/api/devices/101/services/set_temperature", `{"temperature":19.5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if got := decode[map[string]any](t, w)["target_temperature"]; got != 19.5 {
		t.Errorf("target_temperature = %v, want 19.5", got)
	}
	if puts := env.api.Puts(); !slices.Contains(puts, `101 {"roomSetpoint":19.5}`) {
		t.Errorf("puts = %v", puts)
	}

	// No body means no arguments.
	if w := env.do(t, "POST", "/api/devices/101/services/turn_off", ""); w.Code != http.StatusOK {
		t.Errorf("turn_off: status = %d: %s", w.Code, w.Body.String())
	}
}

func TestAPICallServiceErrors(t *testing.T) {
	env := setupTestServer(t)

	tests := []struct {
		path, body string
		want       int
	}{
		{"/api/devices/999/services/turn_on", "", http.StatusNotFound},
		{"/api/devices/101/services/make_coffee", "", http.StatusNotFound},
		{"/api/devices/101/services/set_setpoint_max", `{"roomSetpointMax":"warm"}`, http.StatusBadRequest},
		{"/api/devices/101/services/set_setpoint_max", `{}`, http.StatusBadRequest},
		{"/api/devices/101/services/set_early_start", `{"earlyStart":"on"}`, http.StatusUnprocessableEntity},
		{"/api/devices/101/services/turn_on", `not json`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := env.do(t, "POST", tt.path, tt.body)
		if w.Code != tt.want {
			t.Errorf("%s %s: status = %d, want %d (%s)", tt.path, tt.body, w.Code, tt.want, w.Body.String())
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", coordinator.ErrUnknownDevice), http.StatusNotFound},
		{fmt.Errorf("x: %w", coordinator.ErrUnknownService), http.StatusNotFound},
		{fmt.Errorf("x: %w", coordinator.ErrInvalidArgument), http.StatusBadRequest},
		{fmt.Errorf("x: %w", coordinator.ErrNotSupported), http.StatusUnprocessableEntity},
		{&neviweb.APIError{Code: neviweb.CodeDeviceBusy}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestAPIListServices(t *testing.T) {
	env := setupTestServer(t)

	names := func(path string) []string {
		w := env.do(t, "GET", path, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", path, w.Code)
		}
		var out []string
		for _, svc := range decode[[]map[string]any](t, w) {
			out = append(out, svc["name"].(string))
		}
		return out
	}

	all := names("/api/services")
	if !slices.Contains(all, "set_early_start") || !slices.Contains(all, "set_temperature") {
		t.Errorf("all services = %v", all)
	}
	if !slices.IsSorted(all) {
		t.Error("services not sorted")
	}
	zigbee := names("/api/services?device=101")
	if slices.Contains(zigbee, "set_early_start") {
		t.Error("set_early_start offered to a ZigBee thermostat")
	}
	if !slices.Contains(names("/api/services?device=102"), "set_early_start") {
		t.Error("set_early_start missing for Wi-Fi thermostat")
	}
	if w := env.do(t, "GET", "/api/services?device=nowhere", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown device: status = %d, want 404", w.Code)
	}
}

func TestAPINetworkInfo(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, "GET", "/api/network", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	info := decode[map[string]any](t, w)
	if info["devices"] != float64(2) {
		t.Errorf("devices = %v", info["devices"])
	}
	networks, _ := info["networks"].([]any)
	if len(networks) != 1 {
		t.Errorf("networks = %v", info["networks"])
	}
}
