package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mithun50/luma-cli/internal/domain"
)

// DefaultMarkers identify the IDE workbench page that hosts the chat panel.
var DefaultMarkers = []string{"workbench.html", "workbench"}

// Discoverer scans candidate debugger ports for the host surface.
type Discoverer struct {
	Host    string
	Ports   []int
	Markers []string
	Client  *http.Client
	Logger  *zerolog.Logger
}

// NewDiscoverer builds a Discoverer whose per-port lookup is bounded by timeout.
func NewDiscoverer(host string, ports []int, markers []string, timeout time.Duration, logger *zerolog.Logger) *Discoverer {
	if host == "" {
		host = "127.0.0.1"
	}
	if len(markers) == 0 {
		markers = DefaultMarkers
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Discoverer{
		Host:    host,
		Ports:   ports,
		Markers: markers,
		Client:  &http.Client{Timeout: timeout},
		Logger:  logger,
	}
}

// Discover returns the first qualifying target in port order.
func (d *Discoverer) Discover(ctx context.Context) (domain.Endpoint, error) {
	var failures []PortFailure
	for _, port := range d.Ports {
		targets, err := d.listTargets(ctx, port)
		if err != nil {
			failures = append(failures, PortFailure{Port: port, Err: err})
			continue
		}
		for _, t := range targets {
			if t.WebSocketDebuggerURL != "" && d.matches(t) {
				d.Logger.Debug().Int("port", port).Str("title", t.Title).Msg("cdp: target found")
				return domain.Endpoint{Port: port, WebSocketURL: t.WebSocketDebuggerURL, Target: t}, nil
			}
		}
		failures = append(failures, PortFailure{Port: port, Err: fmt.Errorf("no qualifying target among %d", len(targets))})
		if ctx.Err() != nil {
			break
		}
	}
	return domain.Endpoint{}, &DiscoveryError{Ports: d.Ports, Failures: failures}
}

// Available reports whether port answers with at least one debuggable target.
func (d *Discoverer) Available(ctx context.Context, port int) bool {
	targets, err := d.listTargets(ctx, port)
	return err == nil && len(targets) > 0
}

func (d *Discoverer) matches(t domain.Target) bool {
	for _, m := range d.Markers {
		if m == "" {
			continue
		}
		if strings.Contains(t.URL, m) || strings.Contains(t.Title, m) {
			return true
		}
	}
	return false
}

func (d *Discoverer) listTargets(ctx context.Context, port int) ([]domain.Target, error) {
	u := "http://" + net.JoinHostPort(d.Host, strconv.Itoa(port)) + "/json/list"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	var targets []domain.Target
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return nil, fmt.Errorf("decode target list: %w", err)
	}
	return targets, nil
}
