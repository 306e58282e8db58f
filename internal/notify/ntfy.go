package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultNtfyServer is the public ntfy instance.
const DefaultNtfyServer = "https://ntfy.sh"

// Ntfy posts notifications to an ntfy topic.
type Ntfy struct {
	server   string
	topic    string
	priority string
	client   *http.Client
}

// NewNtfy creates an ntfy sink. An empty server uses ntfy.sh.
func NewNtfy(server, topic, priority string) *Ntfy {
	if server == "" {
		server = DefaultNtfyServer
	}
	if priority == "" {
		priority = "3"
	}
	return &Ntfy{
		server:   strings.TrimRight(server, "/"),
		topic:    topic,
		priority: priority,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *Ntfy) Send(ctx context.Context, title, message string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.server+"/"+n.topic, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("ntfy request: %w", err)
	}
	req.Header.Set("Title", title)
	req.Header.Set("Tags", "thermometer")
	req.Header.Set("Priority", n.priority)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("ntfy post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy post: status %s", resp.Status)
	}
	return nil
}
