package coordinator

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"neviweb-go-home/internal/neviweb"
	"neviweb-go-home/internal/store"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

const livingAttrs = `{
	"roomTemperature": {"value": 21.5},
	"roomSetpoint": 22,
	"roomSetpointMin": 5,
	"roomSetpointMax": 30,
	"temperatureFormat": "celsius",
	"timeFormat": "24h",
	"roomTemperatureDisplay": 21.5,
	"config2ndDisplay": "default",
	"outputPercentDisplay": 40,
	"lockKeypad": "unlocked",
	"backlightAdaptive": "always",
	"cycleLength": 900,
	"rssi": -60,
	"systemMode": "heat",
	"loadConnected": 1000
}`

// fakeNeviweb serves the subset of the Neviweb API the coordinator uses.
// Only the session it issued is accepted; any other gets USRSESSEXP.
type fakeNeviweb struct {
	mu     sync.Mutex
	attrs  map[int]string
	puts   []string
	logins int
}

func (f *fakeNeviweb) Logins() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins
}

func (f *fakeNeviweb) setAttrs(id int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attrs[id] = body
}

func (f *fakeNeviweb) Puts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.puts...)
}

func (f *fakeNeviweb) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.logins++
		f.mu.Unlock()
		io.WriteString(w, `{"session":"s1","account":{"id":7}}`)
	})
	mux.HandleFunc("GET /locations", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id":1,"name":"Home"},{"id":2,"name":"Cottage"},{"id":3,"name":"Office"}]`)
	})
	mux.HandleFunc("GET /devices", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("location$id") {
		case "1":
			io.WriteString(w, `[
				{"id":101,"name":"Living","sku":"TH1123ZB","signature":{"model":1123,"modelCfg":0,"softVersion":{"major":1,"middle":5,"minor":2}}},
				{"id":102,"name":"Hall light","sku":"DM2500ZB","signature":{"model":2506}},
				{"id":103,"name":"Gateway","sku":"GT130"}
			]`)
		case "2":
			io.WriteString(w, `[{"id":201,"name":"Basement","sku":"TH1400WF","signature":{"model":739,"softVersion":{"major":2,"middle":0,"minor":1}}}]`)
		default:
			io.WriteString(w, `[]`)
		}
	})
	mux.HandleFunc("GET /device/{id}/attribute", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.Atoi(r.PathValue("id"))
		f.mu.Lock()
		body, ok := f.attrs[id]
		f.mu.Unlock()
		if !ok {
			body = `{}`
		}
		io.WriteString(w, body)
	})
	mux.HandleFunc("PUT /device/{id}/attribute", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.puts = append(f.puts, fmt.Sprintf("%s %s", r.PathValue("id"), data))
		f.mu.Unlock()
		io.WriteString(w, `{}`)
	})
	mux.HandleFunc("GET /device/{id}/energy/{period}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"values": []any{}})
	})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/login" && r.Header.Get("Session-Id") != "s1" {
			io.WriteString(w, `{"error":{"code":"USRSESSEXP"}}`)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

type testEnv struct {
	coord  *Coordinator
	store  *store.BoltStore
	events *EventBus
	api    *fakeNeviweb
	now    time.Time
}

// newTestEnv builds a coordinator against fakeNeviweb. A saved session is
// written to the store before the client starts.
func newTestEnv(t *testing.T, saved ...neviweb.Session) *testEnv {
	t.Helper()
	api := &fakeNeviweb{attrs: map[int]string{101: livingAttrs}}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	st, err := store.NewBoltStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	for _, s := range saved {
		if err := st.SaveSession(s); err != nil {
			t.Fatal(err)
		}
	}

	logger := newTestLogger()
	client := neviweb.NewClient(neviweb.Config{
		BaseURL:  srv.URL,
		Username: "user@example.com",
		Password: "secret",
		Networks: []string{"home", "Cottage"},
	}, st, logger)

	env := &testEnv{store: st, api: api, now: time.Unix(1_700_000_000, 0)}
	env.events = NewEventBus(logger)
	env.coord = New(client, st, env.events, Config{Now: func() time.Time { return env.now }}, logger)
	return env
}
