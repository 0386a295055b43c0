package client

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/zhenshangxin/tars-go/internal/wire"
)

// Credentials is an adapter's configured ak/sk pair (spec §4.8.5), looked
// up by servant name so the client can run the auth handshake before any
// application traffic crosses a freshly dialed connection.
type Credentials struct {
	AccessKey string
	SecretKey string
}

// buildAuthChallenge derives a challenge frame from the secret key: an
// HMAC-SHA256 of the access key, keyed by the secret, hex-encoded. The
// server side validates this via its configured auth wrapper (spec
// §4.8.5); the wrapper itself is out of scope (Non-goals: "auth
// wrapper" implementations), so only the client's half of the handshake
// is implemented here.
func buildAuthChallenge(c *Credentials) []byte {
	mac := hmac.New(sha256.New, []byte(c.SecretKey))
	mac.Write([]byte(c.AccessKey))
	digest := hex.EncodeToString(mac.Sum(nil))
	return wire.EncodeRequest(&wire.Request{
		ServantName: "@auth",
		FuncName:    "challenge",
		Payload:     []byte(c.AccessKey + ":" + digest),
	})
}

// verifyAuthReply checks the server's handshake response. While a
// connection is not yet authenticated, parseFrames routes every inbound
// frame to this check first. Application requests are not held back until
// it succeeds: they are queued onto the same send buffer right behind the
// challenge and written with it.
func verifyAuthReply(frame []byte) bool {
	resp, err := wire.DecodeResponse(frame)
	if err != nil {
		return false
	}
	return resp.Ret == wire.ResultSuccess
}
