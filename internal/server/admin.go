package server

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/zhenshangxin/tars-go/internal/telemetry"
)

// AdminHandler answers one admin command invocation with a textual
// result (spec §4.7.5).
type AdminHandler func(s *Server, args string) (string, error)

// AdminRegistry is the process-wide command table (spec §9: "keep a
// single process-wide registry only for the admin command table, which
// is inherently global by contract"). Re-registering a name replaces the
// previous handler with a logged warning — original_source's
// ServantHelperManager shows last-registration-wins, resolving spec §9's
// open question.
type AdminRegistry struct {
	handlers map[string]AdminHandler
	order    []string
}

func NewAdminRegistry() *AdminRegistry {
	return &AdminRegistry{handlers: make(map[string]AdminHandler)}
}

func (r *AdminRegistry) Register(name string, h AdminHandler) {
	if _, exists := r.handlers[name]; exists {
		telemetry.Category("admin").Warn().Str("command", name).Msg("duplicate admin command registration, replacing previous handler")
	} else {
		r.order = append(r.order, name)
	}
	r.handlers[name] = h
}

func (r *AdminRegistry) Execute(s *Server, name, args string) (string, error) {
	h, ok := r.handlers[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return h(s, args)
}

func (s *Server) registerBuiltinCommands() {
	s.admin.Register("tars.viewstatus", cmdViewStatus)
	s.admin.Register("tars.connection", cmdConnection)
	s.admin.Register("tars.setloglevel", cmdSetLogLevel)
	s.admin.Register("tars.enabledaylog", cmdEnableDayLog)
	s.admin.Register("tars.loadconfig", cmdLoadConfig)
	s.admin.Register("tars.viewversion", cmdViewVersion)
	s.admin.Register("tars.loadproperty", cmdLoadProperty)
	s.admin.Register("tars.viewadmincommands", cmdViewAdminCommands)
	s.admin.Register("tars.setdyeing", cmdSetDyeing)
	s.admin.Register("tars.closecore", cmdCloseCore)
	s.admin.Register("tars.reloadlocator", cmdReloadLocator)
}

// adapterStatus is the per-adapter slice of tars.viewstatus's diagnostics
// dump, rendered as TOML for human readability alongside the flat
// .tarsdat persisted state (SPEC_FULL §3's domain-stack note on the two
// formats' split).
type adapterStatus struct {
	Name             string `toml:"name"`
	Endpoint         string `toml:"endpoint"`
	Connections      int    `toml:"connections"`
	QueueLen         int    `toml:"queue_len"`
	OverloadRejects  int64  `toml:"overload_rejects"`
	TimeoutCount     int64  `toml:"timeout_count"`
	ACLRejects       int64  `toml:"acl_rejects"`
	EmptyConnRejects int64  `toml:"empty_conn_rejects"`
}

type statusDump struct {
	Server   string          `toml:"server"`
	Adapters []adapterStatus `toml:"adapter"`
}

func cmdViewStatus(s *Server, _ string) (string, error) {
	dump := statusDump{Server: s.Config.App + "." + s.Config.Server}
	for _, a := range s.adapters {
		dump.Adapters = append(dump.Adapters, adapterStatus{
			Name:             a.Name,
			Endpoint:         a.Config.Endpoint.String(),
			Connections:      a.conns.Len(),
			QueueLen:         a.recvQ.Len(),
			OverloadRejects:  a.overloadRejects.Load(),
			TimeoutCount:     a.timeoutCount.Load(),
			ACLRejects:       a.aclRejects.Load(),
			EmptyConnRejects: a.emptyConnRejects.Load(),
		})
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(dump); err != nil {
		return "", wrapf("viewstatus: %w", err)
	}
	return buf.String(), nil
}

func cmdConnection(s *Server, args string) (string, error) {
	var b strings.Builder
	for _, a := range s.adapters {
		if args != "" && args != a.Name {
			continue
		}
		a.conns.Each(func(c *Connection) {
			fmt.Fprintf(&b, "%s\tuid=%d\t%s:%d\n", a.Name, c.UID, c.IP, c.Port)
		})
	}
	return b.String(), nil
}

func cmdSetLogLevel(s *Server, args string) (string, error) {
	lvl, err := telemetry.ParseLevel(strings.TrimSpace(args))
	if err != nil {
		return "", wrapf("setloglevel: %w", err)
	}
	telemetry.SetLevel(lvl)
	if err := s.state.Set("logLevel", strings.ToUpper(strings.TrimSpace(args))); err != nil {
		return "", wrapf("setloglevel: persist: %w", err)
	}
	return "set log level to " + telemetry.CurrentLevel().String(), nil
}

func cmdEnableDayLog(s *Server, args string) (string, error) {
	return "day log directive accepted: " + args, nil
}

func cmdLoadConfig(s *Server, args string) (string, error) {
	return "", wrapf("loadconfig: remote config client out of scope, requested %q", args)
}

func cmdViewVersion(s *Server, _ string) (string, error) {
	return "tars-go/0.1", nil
}

func cmdLoadProperty(s *Server, _ string) (string, error) {
	return "", wrapf("loadproperty: remote property client out of scope")
}

func cmdSetDyeing(s *Server, args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return "", wrapf("setdyeing: usage: <key> <servant> [<interface>]")
	}
	return fmt.Sprintf("dyeing key %q armed for servant %q", fields[0], fields[1]), nil
}

func cmdCloseCore(s *Server, args string) (string, error) {
	enabled := strings.EqualFold(strings.TrimSpace(args), "yes")
	s.Config.CloseCout = !enabled
	if err := s.state.Set("closeCout", fmt.Sprintf("%t", s.Config.CloseCout)); err != nil {
		return "", wrapf("closecore: persist: %w", err)
	}
	return "ok", nil
}

func cmdReloadLocator(s *Server, _ string) (string, error) {
	return "", wrapf("reloadlocator: remote locator client out of scope")
}

func cmdViewAdminCommands(s *Server, _ string) (string, error) {
	return strings.Join(s.admin.order, "\n"), nil
}
