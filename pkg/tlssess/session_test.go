package tlssess

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"
)

// genCert produces a minimal self-signed RSA certificate/key pair for
// loopback handshake tests.
func genCert(t *testing.T, cn string) tls.Certificate {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment | x509.KeyUsageCertSign,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		IsCA:         true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

// pumpHandshake shuttles bytes between two Sessions until both report
// Established or one reports Errored, per spec §8.6 ("handshake completes
// within a bounded number of record exchanges").
func pumpHandshake(t *testing.T, a, b *Session) {
	t.Helper()
	var toA, toB []byte

	outA, _, err := a.DoHandshake(nil)
	if err != nil {
		t.Fatalf("a.DoHandshake initial: %v", err)
	}
	toB = outA

	for round := 0; round < 10; round++ {
		if a.State() == Established && b.State() == Established {
			return
		}

		var outB, outA2 []byte
		var err error

		if len(toB) > 0 || b.State() != Established {
			outB, _, err = b.DoHandshake(toB)
			if err != nil {
				t.Fatalf("b.DoHandshake round %d: %v", round, err)
			}
			toB = nil
		}
		if len(outB) > 0 {
			toA = outB
		}

		if len(toA) > 0 || a.State() != Established {
			outA2, _, err = a.DoHandshake(toA)
			if err != nil {
				t.Fatalf("a.DoHandshake round %d: %v", round, err)
			}
			toA = nil
		}
		if len(outA2) > 0 {
			toB = outA2
		}

		if len(toA) == 0 && len(toB) == 0 && a.State() == Established && b.State() == Established {
			return
		}
	}
	t.Fatalf("handshake did not settle: a=%s b=%s", a.State(), b.State())
}

func TestHandshakeLoopback(t *testing.T) {
	serverCert := genCert(t, "server")

	serverCfg := &tls.Config{Certificates: []tls.Certificate{serverCert}}
	clientCfg := &tls.Config{InsecureSkipVerify: true}

	server := New(RoleServer, serverCfg)
	client := New(RoleClient, clientCfg)

	pumpHandshake(t, client, server)

	if client.State() != Established {
		t.Fatalf("client state = %s, want ESTABLISHED", client.State())
	}
	if server.State() != Established {
		t.Fatalf("server state = %s, want ESTABLISHED", server.State())
	}
}

func TestMutualTLSClientCertVerified(t *testing.T) {
	serverCert := genCert(t, "server")
	clientCert := genCert(t, "client")

	clientPool := x509.NewCertPool()
	clientPool.AddCert(mustParse(t, clientCert))

	serverCfg := &tls.Config{
		Certificates: []tls.Certificate{serverCert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    clientPool,
	}
	clientCfg := &tls.Config{
		Certificates:       []tls.Certificate{clientCert},
		InsecureSkipVerify: true,
	}

	server := New(RoleServer, serverCfg)
	client := New(RoleClient, clientCfg)

	pumpHandshake(t, client, server)

	if server.State() != Established {
		t.Fatalf("server state = %s, want ESTABLISHED (err=%v)", server.State(), server.Err())
	}
}

func TestMutualTLSRejectsUntrustedClient(t *testing.T) {
	serverCert := genCert(t, "server")
	untrustedClientCert := genCert(t, "untrusted-client")
	otherPool := x509.NewCertPool() // deliberately does not contain untrustedClientCert

	serverCfg := &tls.Config{
		Certificates: []tls.Certificate{serverCert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    otherPool,
	}
	clientCfg := &tls.Config{
		Certificates:       []tls.Certificate{untrustedClientCert},
		InsecureSkipVerify: true,
	}

	server := New(RoleServer, serverCfg)
	client := New(RoleClient, clientCfg)

	var toB []byte
	outA, _, _ := client.DoHandshake(nil)
	toB = outA

	errored := false
	for round := 0; round < 10 && !errored; round++ {
		outB, _, errB := server.DoHandshake(toB)
		if errB != nil {
			errored = true
			break
		}
		toB = nil
		outA2, _, errA := client.DoHandshake(outB)
		if errA != nil {
			errored = true
			break
		}
		toB = outA2
	}

	if !errored {
		t.Fatal("expected handshake to fail verification")
	}
}

func TestDataRoundTripAfterHandshake(t *testing.T) {
	serverCert := genCert(t, "server")
	serverCfg := &tls.Config{Certificates: []tls.Certificate{serverCert}}
	clientCfg := &tls.Config{InsecureSkipVerify: true}

	server := New(RoleServer, serverCfg)
	client := New(RoleClient, clientCfg)
	pumpHandshake(t, client, server)

	msg := []byte("hello over the wire")
	wire, err := client.Write(msg)
	if err != nil {
		t.Fatalf("client.Write: %v", err)
	}

	if _, err := server.Read(wire); err != nil {
		t.Fatalf("server.Read: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	var got []byte
	for time.Now().Before(deadline) {
		got = append(got, server.TakePlaintext()...)
		if len(got) >= len(msg) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if !bytes.Equal(got, msg) {
		t.Fatalf("server got %q, want %q", got, msg)
	}
}

func mustParse(t *testing.T, cert tls.Certificate) *x509.Certificate {
	t.Helper()
	c, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}
	return c
}
