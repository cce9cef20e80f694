package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"testing"
	"time"
)

func newNamedCert(t *testing.T, serial *big.Int) *x509.Certificate {
	t.Helper()

	ca := newTestCA(t)
	leafKey := ca.key
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:         "Alice",
			OrganizationalUnit: []string{"Eng"},
			Organization:       []string{"Example"},
			Country:            []string{"US"},
		},
		NotBefore: time.Now().Add(-time.Hour),
		NotAfter:  time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, ca.cert, &leafKey.PublicKey, ca.key)
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("Failed to parse certificate: %v", err)
	}
	return cert
}

func TestSerial(t *testing.T) {
	cert := newNamedCert(t, big.NewInt(0xABCD11))
	if got := Serial(cert); got != "ABCD11" {
		t.Errorf("Expected serial ABCD11, got %q", got)
	}
}

func TestSerialMinimalRepresentation(t *testing.T) {
	cert := newNamedCert(t, big.NewInt(0xF))
	if got := Serial(cert); got != "F" {
		t.Errorf("Expected minimal serial F, got %q", got)
	}
}

func TestSubjectRFC2253(t *testing.T) {
	cert := newNamedCert(t, big.NewInt(2))
	want := "CN=Alice,OU=Eng,O=Example,C=US"
	if got := Subject(cert); got != want {
		t.Errorf("Expected subject %q, got %q", want, got)
	}
}

func TestIssuerRFC2253(t *testing.T) {
	cert := newNamedCert(t, big.NewInt(3))
	want := "CN=Keeto Test Root CA,O=Keeto Test"
	if got := Issuer(cert); got != want {
		t.Errorf("Expected issuer %q, got %q", want, got)
	}
}

func TestPublicKeyRSA(t *testing.T) {
	ca := newTestCA(t)
	leaf := ca.issueClientCert(t, "alice", 1, time.Now().Add(time.Hour))

	pub, err := PublicKey(leaf)
	if err != nil {
		t.Fatalf("PublicKey failed: %v", err)
	}
	if pub.N.Sign() <= 0 {
		t.Error("Expected a populated RSA modulus")
	}
}

func TestPublicKeyUnsupportedType(t *testing.T) {
	ca := newTestCA(t)
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate ecdsa key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(5),
		Subject:      pkix.Name{CommonName: "ecdsa"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, ca.cert, &key.PublicKey, ca.key)
	if err != nil {
		t.Fatalf("Failed to create ecdsa certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("Failed to parse ecdsa certificate: %v", err)
	}

	if _, err := PublicKey(cert); !errors.Is(err, ErrUnsupportedKeyType) {
		t.Errorf("Expected ErrUnsupportedKeyType, got %v", err)
	}
}

func TestZeroize(t *testing.T) {
	secret := []byte("correct horse battery staple")
	Zeroize(secret)
	for i, b := range secret {
		if b != 0 {
			t.Fatalf("Byte %d not wiped", i)
		}
	}
}
