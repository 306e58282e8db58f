//go:build !no_mqtt

package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"neviweb-go-home/internal/coordinator"
)

// Config holds MQTT bridge configuration.
type Config struct {
	Broker      string
	Username    string
	Password    string
	TopicPrefix string
	ClientID    string
}

// Bridge connects the thermostat coordinator to MQTT with HA autodiscovery.
type Bridge struct {
	client pahomqtt.Client
	coord  *coordinator.Coordinator
	prefix string
	logger *slog.Logger
	unsub  func()

	// Current state topic name per device id, to clean up after a rename.
	mu     sync.Mutex
	topics map[int]string
}

// NewBridge creates and connects an MQTT bridge.
func NewBridge(coord *coordinator.Coordinator, cfg Config, logger *slog.Logger) (*Bridge, error) {
	b := &Bridge{
		coord:  coord,
		prefix: cfg.TopicPrefix,
		logger: logger.With("component", "mqtt"),
		topics: make(map[int]string),
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "neviweb-go-home"
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(cfg.TopicPrefix+"/bridge/state", "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			b.logger.Info("MQTT connected")
			b.publishBridgeState("online")
			b.publishAllDiscovery()
			b.subscribeCommands()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			b.logger.Warn("MQTT connection lost", "err", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	// The OnConnect handler may fire before Connect returns.
	b.client = pahomqtt.NewClient(opts)
	token := b.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return b, nil
}

// Start subscribes to coordinator events and begins MQTT publishing.
func (b *Bridge) Start() {
	b.unsub = b.coord.Events().OnAll(b.handleEvent)
	b.logger.Info("MQTT bridge started", "prefix", b.prefix)
}

// Stop publishes offline state, unsubscribes, and disconnects.
func (b *Bridge) Stop() {
	if b.unsub != nil {
		b.unsub()
	}
	b.publishBridgeState("offline")
	b.client.Disconnect(1000)
	b.logger.Info("MQTT bridge stopped")
}

func (b *Bridge) handleEvent(event coordinator.Event) {
	switch event.Type {
	case coordinator.EventStateUpdate:
		if snap, ok := event.Data.(coordinator.Snapshot); ok {
			b.publishState(snap)
		}
	case coordinator.EventDeviceDiscovered:
		if snap, ok := event.Data.(coordinator.Snapshot); ok {
			b.publishDeviceDiscovery(snap)
			b.publishState(snap)
		}
	case coordinator.EventDeviceRenamed:
		data, ok := event.Data.(map[string]any)
		if !ok {
			return
		}
		if snap, ok := data["device"].(coordinator.Snapshot); ok {
			b.publishDeviceDiscovery(snap)
			b.publishState(snap)
		}
	case coordinator.EventDeviceRemoved:
		data, ok := event.Data.(map[string]any)
		if !ok {
			return
		}
		if id, ok := data["id"].(int); ok {
			b.removeDevice(id)
		}
	case coordinator.EventNotification:
		b.publish(b.prefix+"/bridge/notification", mustJSON(event.Data), false)
	case coordinator.EventBridgeState:
		if state, ok := event.Data.(string); ok {
			b.publishBridgeState(state)
		}
	}
}

// publishState publishes the retained device view. When the topic name
// changed since the last publish, the old retained message is cleared.
func (b *Bridge) publishState(snap coordinator.Snapshot) {
	name := deviceTopicName(snap)

	b.mu.Lock()
	old, seen := b.topics[snap.ID]
	b.topics[snap.ID] = name
	b.mu.Unlock()

	if seen && old != name {
		b.publish(b.prefix+"/"+old, nil, true)
	}
	b.publish(b.prefix+"/"+name, mustJSON(snap), true)
}

func (b *Bridge) removeDevice(id int) {
	for _, msg := range buildRemoveDiscovery(id) {
		b.publish(msg.Topic, msg.Payload, true)
	}

	b.mu.Lock()
	name, ok := b.topics[id]
	delete(b.topics, id)
	b.mu.Unlock()
	if ok {
		b.publish(b.prefix+"/"+name, nil, true)
	}
	b.logger.Info("removed HA discovery", "id", id)
}

func (b *Bridge) publishBridgeState(state string) {
	topic := b.prefix + "/bridge/state"
	b.publish(topic, []byte(state), true)
}

func (b *Bridge) publishAllDiscovery() {
	for _, snap := range b.coord.Devices() {
		b.publishDeviceDiscovery(snap)
		b.publishState(snap)
	}
}

func (b *Bridge) publishDeviceDiscovery(snap coordinator.Snapshot) {
	for _, msg := range buildDiscovery(snap, b.prefix) {
		b.publish(msg.Topic, msg.Payload, true)
	}
	b.logger.Info("published HA discovery", "id", snap.ID, "name", snap.DisplayName())
}

// subscribeCommands subscribes once for every device; the device is
// resolved from the topic when a command arrives, so renames need no
// resubscription.
func (b *Bridge) subscribeCommands() {
	topic := b.prefix + "/+/set/#"
	token := b.client.Subscribe(topic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		b.handleCommand(msg.Topic(), msg.Payload())
	})
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			b.logger.Warn("MQTT subscribe timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			b.logger.Warn("MQTT subscribe error", "topic", topic, "err", err)
		}
	}()
}

func (b *Bridge) handleCommand(topic string, payload []byte) {
	device, field, ok := splitCommandTopic(b.prefix, topic)
	if !ok {
		return
	}
	id, err := b.coord.Resolve(device)
	if err != nil {
		b.logger.Warn("command for unknown device", "device", device)
		return
	}

	var cmds []command
	if field == "" {
		cmds, err = parseCommand(payload)
	} else {
		var cmd command
		cmd, err = parseFieldCommand(field, payload)
		cmds = []command{cmd}
	}
	if err != nil {
		b.logger.Warn("invalid command", "device", device, "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(b.coord.Context(), 30*time.Second)
	defer cancel()
	for _, cmd := range cmds {
		if err := b.coord.Call(ctx, id, cmd.Service, cmd.Args); err != nil {
			b.logger.Warn("command failed", "device", device, "service", cmd.Service, "err", err)
		}
	}
}

// command is one service call decoded from an MQTT message.
type command struct {
	Service string
	Args    coordinator.Args
}

var errEmptyCommand = errors.New("no recognised command")

// splitCommandTopic splits "<prefix>/<device>/set[/<field>]".
func splitCommandTopic(prefix, topic string) (device, field string, ok bool) {
	rest, found := strings.CutPrefix(topic, prefix+"/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 2 && parts[1] == "set":
		return parts[0], "", parts[0] != ""
	case len(parts) == 3 && parts[1] == "set":
		return parts[0], parts[2], parts[0] != "" && parts[2] != ""
	}
	return "", "", false
}

// parseCommand decodes a JSON command. {"service": name, ...} calls that
// service with the remaining keys as arguments; otherwise the climate keys
// hvac_mode, preset_mode, temperature and aux_heat are applied in that order.
func parseCommand(payload []byte) ([]command, error) {
	var raw map[string]any
	dec := json.NewDecoder(strings.NewReader(string(payload)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}

	if svc, ok := raw["service"].(string); ok {
		args := coordinator.Args{}
		for k, v := range raw {
			if k != "service" {
				args[k] = v
			}
		}
		return []command{{Service: svc, Args: args}}, nil
	}

	var cmds []command
	if v, ok := raw["hvac_mode"]; ok {
		cmds = append(cmds, command{"set_hvac_mode", coordinator.Args{"hvac_mode": v}})
	}
	if v, ok := raw["preset_mode"]; ok {
		cmds = append(cmds, command{"set_preset_mode", coordinator.Args{"preset_mode": v}})
	}
	if v, ok := raw["temperature"]; ok {
		cmds = append(cmds, command{"set_temperature", coordinator.Args{"temperature": v}})
	}
	if v, ok := raw["aux_heat"]; ok {
		on, err := coordinator.Args{"aux_heat": v}.Bool("aux_heat")
		if err != nil {
			return nil, err
		}
		if on {
			cmds = append(cmds, command{Service: "turn_aux_heat_on"})
		} else {
			cmds = append(cmds, command{Service: "turn_aux_heat_off"})
		}
	}
	if len(cmds) == 0 {
		return nil, errEmptyCommand
	}
	return cmds, nil
}

// parseFieldCommand decodes the plain payloads HA sends to the climate
// command topics.
func parseFieldCommand(field string, payload []byte) (command, error) {
	value := strings.TrimSpace(string(payload))
	switch field {
	case "hvac_mode":
		return command{"set_hvac_mode", coordinator.Args{"hvac_mode": value}}, nil
	case "preset_mode":
		return command{"set_preset_mode", coordinator.Args{"preset_mode": value}}, nil
	case "temperature":
		temp, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return command{}, fmt.Errorf("temperature %q: %w", value, coordinator.ErrInvalidArgument)
		}
		return command{"set_temperature", coordinator.Args{"temperature": temp}}, nil
	}
	return command{}, fmt.Errorf("field %q: %w", field, errEmptyCommand)
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) {
	token := b.client.Publish(topic, 1, retained, payload)
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			b.logger.Warn("MQTT publish timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			b.logger.Warn("MQTT publish error", "topic", topic, "err", err)
		}
	}()
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
