package client

import (
	"strconv"
	"strings"
	"time"

	"github.com/zhenshangxin/tars-go/pkg/tarsconf"
)

// Config is the process-wide client snapshot loaded at bootstrap from
// /tars/application/client (spec §4.8.1 / §6). Mutable only through
// explicit reload admin commands, mirroring internal/server's
// ServerConfig.
type Config struct {
	Locator string

	SyncInvokeTimeout  time.Duration
	AsyncInvokeTimeout time.Duration
	RefreshEndpoint    time.Duration

	Stat     string
	Property string

	ReportInterval time.Duration
	ReportTimeout  time.Duration
	SampleRate     int
	MaxSampleCount int
	MaxReportSize  int

	NetThread   int
	AsyncThread int
	ModuleName  string
}

// defaultMinTimeout is spec §4.8.1's "min timeout >= 1ms" floor, applied
// to both the sync and async invocation timeouts.
const defaultMinTimeout = time.Millisecond

// LoadConfig reads /tars/application/client from root, applying the
// defaults spec §6 specifies in brackets.
func LoadConfig(root *tarsconf.Domain) (*Config, error) {
	dom, err := root.GetDomain("/tars/application/client")
	if err != nil {
		return nil, wrapf("config: %w", err)
	}

	cfg := &Config{
		ReportInterval: 60000 * time.Millisecond,
		ReportTimeout:  5000 * time.Millisecond,
		SampleRate:     1000,
		MaxSampleCount: 100,
		MaxReportSize:  1400,
		NetThread:      1,
	}

	cfg.Locator = getDefault(dom, "locator", "")
	cfg.SyncInvokeTimeout = clampMinDuration(getMillis(dom, "sync-invoke-timeout", 3000), defaultMinTimeout)
	cfg.AsyncInvokeTimeout = clampMinDuration(getMillis(dom, "async-invoke-timeout", 3000), defaultMinTimeout)
	cfg.RefreshEndpoint = getMillis(dom, "refresh-endpoint-interval", 60000)
	cfg.Stat = getDefault(dom, "stat", "")
	cfg.Property = getDefault(dom, "property", "")
	cfg.ReportInterval = getMillis(dom, "report-interval", 60000)
	cfg.ReportTimeout = getMillis(dom, "report-timeout", 5000)
	cfg.SampleRate = getInt(dom, "sample-rate", cfg.SampleRate)
	cfg.MaxSampleCount = getInt(dom, "max-sample-count", cfg.MaxSampleCount)
	cfg.MaxReportSize = getInt(dom, "max-report-size", cfg.MaxReportSize)
	cfg.NetThread = clamp(getInt(dom, "netthread", 1), 1, 64)
	cfg.AsyncThread = getInt(dom, "asyncthread", 0)
	if cfg.AsyncThread <= 0 {
		cfg.AsyncThread = cfg.NetThread
	}
	cfg.ModuleName = getDefault(dom, "modulename", "")

	return cfg, nil
}

func clampMinDuration(d, min time.Duration) time.Duration {
	if d < min {
		return min
	}
	return d
}

func getMillis(d *tarsconf.Domain, key string, def int) time.Duration {
	return time.Duration(getInt(d, key, def)) * time.Millisecond
}

func getDefault(d *tarsconf.Domain, key, def string) string {
	v, ok := d.Param(key)
	if !ok {
		return def
	}
	return v
}

func getInt(d *tarsconf.Domain, key string, def int) int {
	v, ok := d.Param(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ParseEndpointList splits a locator-returned endpoint list ("tcp -h ip -p
// port:tcp -h ip2 -p port2") on ':' the way the original locator protocol
// encodes multiple endpoints in one reply string.
func ParseEndpointList(s string) []Endpoint {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []Endpoint
	for _, part := range strings.Split(s, ":") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if ep, err := ParseEndpoint(part); err == nil {
			out = append(out, ep)
		}
	}
	return out
}
