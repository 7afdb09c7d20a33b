package network

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"
)

// ProbeResult is what the platform reports. Nil fields are unknown and count
// as false.
type ProbeResult struct {
	IsConnected         *bool
	IsInternetReachable *bool
}

type Probe interface {
	Probe(ctx context.Context) (ProbeResult, error)
}

// HTTPProbe treats any up, non-loopback interface with an address as a link,
// and a HEAD answered below 500 as internet reachability.
type HTTPProbe struct {
	url    string
	client *http.Client
	// link is swapped in tests.
	link func() bool
}

func NewHTTPProbe(url string, timeout time.Duration) *HTTPProbe {
	return &HTTPProbe{
		url:    url,
		client: &http.Client{Timeout: timeout},
		link:   interfaceUp,
	}
}

func (p *HTTPProbe) Probe(ctx context.Context) (ProbeResult, error) {
	connected := p.link()
	result := ProbeResult{IsConnected: &connected}
	if !connected {
		reachable := false
		result.IsInternetReachable = &reachable
		return result, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return result, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		reachable := false
		result.IsInternetReachable = &reachable
		return result, nil
	}
	resp.Body.Close()

	reachable := resp.StatusCode < http.StatusInternalServerError
	result.IsInternetReachable = &reachable
	return result, nil
}

func interfaceUp() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}

// StaticProbe reports whatever it was last set to.
type StaticProbe struct {
	mu     sync.Mutex
	result ProbeResult
	err    error
}

func NewStaticProbe(connected, reachable bool) *StaticProbe {
	p := &StaticProbe{}
	p.Set(connected, reachable)
	return p
}

func (p *StaticProbe) Set(connected, reachable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result = ProbeResult{IsConnected: &connected, IsInternetReachable: &reachable}
	p.err = nil
}

func (p *StaticProbe) SetResult(result ProbeResult, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result = result
	p.err = err
}

func (p *StaticProbe) Probe(ctx context.Context) (ProbeResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result, p.err
}
