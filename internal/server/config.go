package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/zhenshangxin/tars-go/pkg/tarsconf"
)

// ServerConfig is the process-wide server snapshot loaded at bootstrap
// from /tars/application/server (spec §6). Mutable only through explicit
// reload admin commands.
type ServerConfig struct {
	App      string
	Server   string
	LocalIP  string
	BasePath string
	DataPath string
	LogPath  string
	LogSize  int64
	LogNum   int
	Local    string // admin endpoint, optional

	NetThread        int
	OpenCoroutine    bool
	CoroutineMemSize int64
	CoroutineStack   int64
	CloseCout        bool
	EmptyConCheck    bool
	EmptyConnTimeout time.Duration
	PoolMinBlockSize int64
	PoolMaxBlockSize int64
	PoolMaxBytes     int64

	Adapters []AdapterConfig
}

// AdapterConfig is one `<adapterName>` subsection under
// /tars/application/server (spec §4.7.1 / §6).
type AdapterConfig struct {
	Name                string
	Servant             string
	Endpoint            Endpoint
	MaxConns            int
	Order               Order
	Allow               []string
	Deny                []string
	QueueCap            int
	QueueTimeout        time.Duration
	Protocol            string
	HandleGroup         string
	Threads             int
	AccessKey           string
	SecretKey           string
	BackPacketBuffLimit int64
	CertFile            string // nonempty enables TLS termination (spec §4.5)
	KeyFile             string
}

// Endpoint is a parsed "tcp|udp -h <ip> -p <port> -t <ms>" string.
type Endpoint struct {
	Proto   string // "tcp" or "udp"
	Host    string
	Port    int
	Timeout time.Duration
}

func (e Endpoint) String() string {
	return e.Proto + " -h " + e.Host + " -p " + strconv.Itoa(e.Port)
}

// ParseEndpoint parses the spec's endpoint grammar.
func ParseEndpoint(s string) (Endpoint, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Endpoint{}, wrapf("config: empty endpoint string")
	}
	ep := Endpoint{Proto: fields[0]}
	for i := 1; i < len(fields)-1; i += 2 {
		switch fields[i] {
		case "-h":
			ep.Host = fields[i+1]
		case "-p":
			p, err := strconv.Atoi(fields[i+1])
			if err != nil {
				return Endpoint{}, wrapf("config: bad port in endpoint %q: %w", s, err)
			}
			ep.Port = p
		case "-t":
			ms, err := strconv.Atoi(fields[i+1])
			if err != nil {
				return Endpoint{}, wrapf("config: bad timeout in endpoint %q: %w", s, err)
			}
			ep.Timeout = time.Duration(ms) * time.Millisecond
		}
	}
	return ep, nil
}

// LoadServerConfig reads /tars/application/server from root, applying the
// defaults spec §6 specifies in brackets.
func LoadServerConfig(root *tarsconf.Domain) (*ServerConfig, error) {
	dom, err := root.GetDomain("/tars/application/server")
	if err != nil {
		return nil, wrapf("config: %w", err)
	}

	cfg := &ServerConfig{
		BasePath:         ".",
		DataPath:         ".",
		LogPath:          ".",
		LogSize:          50 << 20,
		LogNum:           10,
		NetThread:        1,
		CoroutineMemSize: 1 << 30,
		CoroutineStack:   128 << 10,
		CloseCout:        true,
		EmptyConnTimeout: 3 * time.Second,
		PoolMinBlockSize: 1 << 10,
		PoolMaxBlockSize: 8 << 20,
		PoolMaxBytes:     64 << 20,
	}

	cfg.App = mustGet(dom, "app")
	cfg.Server = getDefault(dom, "server", cfg.App)
	cfg.LocalIP = getDefault(dom, "localip", "")
	cfg.BasePath = getDefault(dom, "basepath", cfg.BasePath)
	cfg.DataPath = getDefault(dom, "datapath", cfg.DataPath)
	cfg.LogPath = getDefault(dom, "logpath", cfg.LogPath)
	cfg.LogSize = getInt64(dom, "logsize", cfg.LogSize)
	cfg.LogNum = getInt(dom, "lognum", cfg.LogNum)
	cfg.Local = getDefault(dom, "local", "")
	cfg.NetThread = clamp(getInt(dom, "netthread", 1), 1, 15)
	cfg.OpenCoroutine = getBool(dom, "opencoroutine", false)
	cfg.CoroutineMemSize = getInt64(dom, "coroutinememsize", cfg.CoroutineMemSize)
	cfg.CoroutineStack = getInt64(dom, "coroutinestack", cfg.CoroutineStack)
	cfg.CloseCout = getInt(dom, "closecout", 1) != 0
	cfg.EmptyConCheck = getBool(dom, "emptyconcheck", false)
	cfg.EmptyConnTimeout = time.Duration(getInt(dom, "emptyconntimeout", 3)) * time.Second
	cfg.PoolMinBlockSize = getInt64(dom, "poolminblocksize", cfg.PoolMinBlockSize)
	cfg.PoolMaxBlockSize = getInt64(dom, "poolmaxblocksize", cfg.PoolMaxBlockSize)
	cfg.PoolMaxBytes = getInt64(dom, "poolmaxbytes", cfg.PoolMaxBytes)

	for _, sub := range dom.Subdomains() {
		if !looksLikeAdapter(sub) {
			continue
		}
		ac, err := parseAdapter(sub, cfg)
		if err != nil {
			return nil, err
		}
		if !strings.HasPrefix(ac.Servant, cfg.App+"."+cfg.Server+".") {
			return nil, &BootstrapError{Stage: "adapter " + ac.Name, Err: ErrServantMismatch}
		}
		cfg.Adapters = append(cfg.Adapters, ac)
	}
	return cfg, nil
}

// looksLikeAdapter distinguishes adapter subsections (which declare a
// "servant" key) from unrelated nested sections.
func looksLikeAdapter(d *tarsconf.Domain) bool {
	_, ok := d.Param("servant")
	return ok
}

func parseAdapter(d *tarsconf.Domain, cfg *ServerConfig) (AdapterConfig, error) {
	ac := AdapterConfig{
		Name:                d.Name,
		Servant:             mustGet(d, "servant"),
		MaxConns:            getInt(d, "maxconns", 128),
		QueueCap:            getInt(d, "queuecap", 1024),
		QueueTimeout:        time.Duration(getInt(d, "queuetimeout", 10000)) * time.Millisecond,
		Protocol:            getDefault(d, "protocol", "tars"),
		HandleGroup:         getDefault(d, "handlegroup", d.Name),
		Threads:             getInt(d, "threads", 0),
		AccessKey:           getDefault(d, "accesskey", ""),
		SecretKey:           getDefault(d, "secretkey", ""),
		BackPacketBuffLimit: getInt64(d, "BackPacketBuffLimit", 0),
		CertFile:            getDefault(d, "certfile", ""),
		KeyFile:             getDefault(d, "keyfile", ""),
	}

	order := getDefault(d, "order", "allow,deny")
	if strings.HasPrefix(strings.ToLower(order), "deny") {
		ac.Order = DenyAllow
	} else {
		ac.Order = AllowDeny
	}
	ac.Allow = splitCSV(getDefault(d, "allow", ""))
	ac.Deny = splitCSV(getDefault(d, "deny", ""))

	if ep := getDefault(d, "endpoint", ""); ep != "" {
		parsed, err := ParseEndpoint(ep)
		if err != nil {
			return AdapterConfig{}, &BootstrapError{Stage: "adapter " + ac.Name, Err: err}
		}
		ac.Endpoint = parsed
	}
	return ac, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func mustGet(d *tarsconf.Domain, key string) string {
	v, _ := d.Param(key)
	return v
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

func getInt64(d *tarsconf.Domain, key string, def int64) int64 {
	if d == nil {
		return def
	}
	v, ok := d.Param(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getBool(d *tarsconf.Domain, key string, def bool) bool {
	v, ok := d.Param(key)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return def
	}
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
