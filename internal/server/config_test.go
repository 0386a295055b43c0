package server

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhenshangxin/tars-go/pkg/tarsconf"
)

const sampleConfig = `
<tars>
	<application>
		<server>
			app=TestApp
			server=TestServer
			netthread=2
			emptyconcheck=1
			<echo>
				servant=TestApp.TestServer.EchoObj
				endpoint=tcp -h 127.0.0.1 -p 18001 -t 3000
				queuecap=2
				queuetimeout=50
				allow=127.0.0.1
				order=allow,deny
			</echo>
		</server>
	</application>
</tars>
`

func TestLoadServerConfig(t *testing.T) {
	root, err := tarsconf.Parse(sampleConfig)
	require.NoError(t, err)

	cfg, err := LoadServerConfig(root)
	require.NoError(t, err)

	require.Equal(t, "TestApp", cfg.App)
	require.Equal(t, "TestServer", cfg.Server)
	require.Equal(t, 2, cfg.NetThread)
	require.True(t, cfg.EmptyConCheck)
	require.Len(t, cfg.Adapters, 1)

	a := cfg.Adapters[0]
	require.Equal(t, "echo", a.Name)
	require.Equal(t, "TestApp.TestServer.EchoObj", a.Servant)
	require.Equal(t, 2, a.QueueCap)
	require.Equal(t, "tcp", a.Endpoint.Proto)
	require.Equal(t, 18001, a.Endpoint.Port)
}

func TestLoadServerConfigRejectsServantMismatch(t *testing.T) {
	bad := `
<tars>
	<application>
		<server>
			app=TestApp
			server=TestServer
			<echo>
				servant=OtherApp.OtherServer.EchoObj
				endpoint=tcp -h 127.0.0.1 -p 18001
			</echo>
		</server>
	</application>
</tars>
`
	root, err := tarsconf.Parse(bad)
	require.NoError(t, err)

	_, err = LoadServerConfig(root)
	require.ErrorIs(t, err, ErrServantMismatch)
}

func TestParseEndpoint(t *testing.T) {
	ep, err := ParseEndpoint("tcp -h 0.0.0.0 -p 9999 -t 1000")
	require.NoError(t, err)
	require.Equal(t, "tcp", ep.Proto)
	require.Equal(t, "0.0.0.0", ep.Host)
	require.Equal(t, 9999, ep.Port)
}
