package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zhenshangxin/tars-go/pkg/tarsconf"
)

const sampleClientConfig = `
<tars>
	<application>
		<client>
			locator=TestApp.Locator.ObjRouter@tcp -h 127.0.0.1 -p 17890
			sync-invoke-timeout=2000
			async-invoke-timeout=2000
			netthread=3
			asyncthread=0
		</client>
	</application>
</tars>
`

func TestLoadConfig(t *testing.T) {
	root, err := tarsconf.Parse(sampleClientConfig)
	require.NoError(t, err)

	cfg, err := LoadConfig(root)
	require.NoError(t, err)

	require.Equal(t, 3, cfg.NetThread)
	require.Equal(t, 3, cfg.AsyncThread) // defaults to netthread when unset/zero
	require.Equal(t, 2*time.Second, cfg.SyncInvokeTimeout)
	require.Equal(t, 60*time.Second, cfg.ReportInterval)
}

func TestLoadConfigClampsNetThread(t *testing.T) {
	root, err := tarsconf.Parse(`<tars><application><client>netthread=999</client></application></tars>`)
	require.NoError(t, err)

	cfg, err := LoadConfig(root)
	require.NoError(t, err)
	require.Equal(t, 64, cfg.NetThread)
}

func TestParseEndpointList(t *testing.T) {
	eps := ParseEndpointList("tcp -h 10.0.0.1 -p 9001:tcp -h 10.0.0.2 -p 9002")
	require.Len(t, eps, 2)
	require.Equal(t, "10.0.0.1", eps[0].Host)
	require.Equal(t, 9001, eps[0].Port)
	require.Equal(t, "10.0.0.2", eps[1].Host)
}
