// Package neviwebtest provides an in-memory Neviweb API for tests.
package neviwebtest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

// LivingAttributes is the attribute payload served for device 101.
const LivingAttributes = `{
	"roomTemperature": {"value": 21.5},
	"roomSetpoint": 22,
	"roomSetpointMin": 5,
	"roomSetpointMax": 30,
	"temperatureFormat": "celsius",
	"timeFormat": "24h",
	"roomTemperatureDisplay": 21.5,
	"loadConnected": 1000,
	"rssi": -60,
	"config2ndDisplay": "default",
	"outputPercentDisplay": 40,
	"lockKeypad": "unlocked",
	"backlightAdaptive": "always",
	"cycleLength": 900,
	"systemMode": "heat"
}`

// KitchenAttributes is the attribute payload served for device 102.
const KitchenAttributes = `{
	"roomTemperature": {"value": 19.5},
	"roomSetpoint": 20,
	"roomSetpointMin": 5,
	"roomSetpointMax": 30,
	"temperatureFormat": "celsius",
	"timeFormat": "12h",
	"outputPercentDisplay": {"percent": 0, "sourceType": "heating"},
	"setpointMode": "auto",
	"occupancyMode": "home",
	"keyboardLock": "unlock",
	"wifiRssi": -45,
	"roomSetpointAway": 16,
	"loadWattOutput1": {"status": "on", "value": 1500},
	"backlightAutoDim": "onUserAction"
}`

// Server serves one location ("Home", id 1) holding a ZigBee thermostat
// (101 "Living", TH1123ZB) and a Wi-Fi thermostat (102 "Kitchen",
// TH1510WF). Attribute writes are recorded.
type Server struct {
	*httptest.Server

	mu    sync.Mutex
	attrs map[int]string
	puts  []string
}

// NewServer starts a server. Close it when done.
func NewServer() *Server {
	s := &Server{attrs: map[int]string{101: LivingAttributes, 102: KitchenAttributes}}
	s.Server = httptest.NewServer(s.handler())
	return s
}

// SetAttributes replaces the attribute payload served for a device.
func (s *Server) SetAttributes(id int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs[id] = body
}

// Puts returns the recorded writes as "<id> <json body>".
func (s *Server) Puts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.puts...)
}

func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"session":"test-session","account":{"id":7}}`)
	})
	mux.HandleFunc("GET /locations", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id":1,"name":"Home"}]`)
	})
	mux.HandleFunc("GET /devices", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("location$id") != "1" {
			io.WriteString(w, `[]`)
			return
		}
		io.WriteString(w, `[
			{"id":101,"name":"Living","sku":"TH1123ZB","signature":{"model":1123,"softVersion":{"major":1,"middle":2,"minor":0}}},
			{"id":102,"name":"Kitchen","sku":"TH1510WF","signature":{"model":1510,"softVersion":{"major":3,"middle":1,"minor":4}}}
		]`)
	})
	mux.HandleFunc("GET /device/{id}/attribute", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.Atoi(r.PathValue("id"))
		s.mu.Lock()
		body, ok := s.attrs[id]
		s.mu.Unlock()
		if !ok {
			body = `{}`
		}
		io.WriteString(w, body)
	})
	mux.HandleFunc("PUT /device/{id}/attribute", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.puts = append(s.puts, fmt.Sprintf("%s %s", r.PathValue("id"), data))
		s.mu.Unlock()
		io.WriteString(w, `{}`)
	})
	mux.HandleFunc("GET /device/{id}/energy/{period}", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"values":[]}`)
	})
	return mux
}
