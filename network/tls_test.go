package network_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/relab/paxos"
	"github.com/relab/paxos/network"
)

// writeCert writes a self-signed certificate for 127.0.0.1 and its key to dir.
func writeCert(t *testing.T, dir string) (certFile, keyFile string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "paxos"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	if err := os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		t.Fatal(err)
	}
	return certFile, keyFile
}

func TestGRPCWithTLS(t *testing.T) {
	certFile, keyFile := writeCert(t, t.TempDir())
	creds, err := network.LoadTLS(certFile, keyFile, certFile)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := newGRPC(t, "a", network.WithTransportCredentials(creds))
	b, inB := newGRPC(t, "b", network.WithTransportCredentials(creds))
	a.Connect(map[string]string{"b": b.Addr().String()})

	want := paxos.PrepareMsg{From: "a", ProposalID: paxos.ProposalID{Round: 2, UID: "a"}}
	a.Send("b", want)
	if got := receive(t, inB); got != want {
		t.Errorf("received %v, want %v", got, want)
	}
}

func TestLoadTLSMissingFiles(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeCert(t, dir)
	if _, err := network.LoadTLS(filepath.Join(dir, "missing.pem"), keyFile, certFile); err == nil {
		t.Error("expected an error for a missing certificate")
	}
	if _, err := network.LoadTLS(certFile, keyFile, filepath.Join(dir, "missing.pem")); err == nil {
		t.Error("expected an error for a missing CA")
	}
	if _, err := network.LoadTLS(certFile, keyFile, keyFile); err == nil {
		t.Error("expected an error for a CA file without certificates")
	}
}
