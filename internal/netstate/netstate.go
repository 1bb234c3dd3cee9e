// Package netstate reports device connectivity to the bundle manager.
package netstate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Reachability mirrors the three connectivity classes the manager cares about.
type Reachability int

const (
	NotReachable Reachability = iota
	ReachableViaCarrier
	ReachableViaLocalArea
)

func (r Reachability) String() string {
	switch r {
	case ReachableViaCarrier:
		return "carrier"
	case ReachableViaLocalArea:
		return "lan"
	default:
		return "offline"
	}
}

// Parse maps "lan", "carrier" and "offline" to a Reachability.
func Parse(s string) (Reachability, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lan", "wifi", "":
		return ReachableViaLocalArea, nil
	case "carrier", "cellular":
		return ReachableViaCarrier, nil
	case "offline", "none":
		return NotReachable, nil
	default:
		return NotReachable, fmt.Errorf("unknown reachability: %q", s)
	}
}

// Static is a Reachability provider with a settable value.
type Static struct {
	mu sync.RWMutex
	r  Reachability
}

// NewStatic returns a provider fixed at r until Set is called.
func NewStatic(r Reachability) *Static { return &Static{r: r} }

func (s *Static) Reachability() Reachability {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.r
}

// Set changes the reported reachability.
func (s *Static) Set(r Reachability) {
	s.mu.Lock()
	s.r = r
	s.mu.Unlock()
}

// Probe reports ReachableViaLocalArea while a HEAD request to URL succeeds and
// NotReachable otherwise. Results are cached for Interval.
type Probe struct {
	URL      string
	Interval time.Duration
	Client   *http.Client

	mu      sync.Mutex
	checked time.Time
	last    Reachability
}

const defaultProbeTimeout = 3 * time.Second

// NewProbe returns a Probe with a 5s cache interval and a 3s request timeout.
func NewProbe(url string) *Probe {
	return &Probe{URL: url, Interval: 5 * time.Second, Client: &http.Client{Timeout: defaultProbeTimeout}}
}

func (p *Probe) Reachability() Reachability {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.checked.IsZero() && time.Since(p.checked) < p.Interval {
		return p.last
	}
	p.last = p.check()
	p.checked = time.Now()
	return p.last
}

func (p *Probe) check() Reachability {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	timeout := client.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return NotReachable
	}
	resp, err := client.Do(req)
	if err != nil {
		return NotReachable
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return NotReachable
	}
	return ReachableViaLocalArea
}
