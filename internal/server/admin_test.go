package server

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &ServerConfig{
		App:      "TestApp",
		Server:   "TestServer",
		DataPath: t.TempDir(),
		NetThread: 1,
		Adapters: []AdapterConfig{
			{
				Name:         "echo",
				Servant:      "TestApp.TestServer.EchoObj",
				Endpoint:     Endpoint{Proto: "tcp", Host: "127.0.0.1", Port: 0},
				MaxConns:     128,
				QueueCap:     4,
				QueueTimeout: 50 * time.Millisecond,
				Protocol:     "tars",
				HandleGroup:  "echo",
				Threads:      1,
			},
		},
	}
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Terminate() })
	return s
}

func TestAdminViewVersion(t *testing.T) {
	s := newTestServer(t)
	out, err := s.AdminCommand("tars.viewversion", "")
	require.NoError(t, err)
	require.Contains(t, out, "tars-go")
}

func TestAdminSetLogLevelPersists(t *testing.T) {
	s := newTestServer(t)
	_, err := s.AdminCommand("tars.setloglevel", "debug")
	require.NoError(t, err)
	require.Equal(t, "DEBUG", s.state.Values["logLevel"])
}

func TestAdminUnknownCommand(t *testing.T) {
	s := newTestServer(t)
	_, err := s.AdminCommand("tars.doesnotexist", "")
	require.ErrorIs(t, err, ErrUnknownCommand)
}

func TestAdminViewAdminCommandsListsBuiltins(t *testing.T) {
	s := newTestServer(t)
	out, err := s.AdminCommand("tars.viewadmincommands", "")
	require.NoError(t, err)
	require.True(t, strings.Contains(out, "tars.viewstatus"))
	require.True(t, strings.Contains(out, "tars.setdyeing"))
}

func TestAdminViewStatusIncludesAdapter(t *testing.T) {
	s := newTestServer(t)
	out, err := s.AdminCommand("tars.viewstatus", "")
	require.NoError(t, err)
	require.Contains(t, out, "echo")
}

func TestAdminCloseCorePersistsState(t *testing.T) {
	s := newTestServer(t)
	_, err := s.AdminCommand("tars.closecore", "yes")
	require.NoError(t, err)
	require.False(t, s.Config.CloseCout)
	require.Equal(t, "false", s.state.Values["closeCout"])
}
