package keystore

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/flix-/keeto/pkg/security"
	"github.com/flix-/keeto/pkg/types"
)

// newPKI builds a root CA and a client certificate chained to it, and
// lays the CA out in a cert store directory
func newPKI(t *testing.T) (*security.CertStore, *x509.Certificate) {
	t.Helper()

	caKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	caTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"Keeto Test"},
			CommonName:   "Keeto Test Root CA",
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	require.NoError(t, err)
	caCert, err := x509.ParseCertificate(caDER)
	require.NoError(t, err)

	leafKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	leafTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(0xBEEF),
		Subject: pkix.Name{
			Organization: []string{"Keeto Test"},
			CommonName:   "alice",
		},
		NotBefore:   time.Now().Add(-time.Hour),
		NotAfter:    time.Now().Add(time.Hour),
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTemplate, caCert, &leafKey.PublicKey, caKey)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(leafDER)
	require.NoError(t, err)

	dir := t.TempDir()
	caPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: caDER})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ca.pem"), caPEM, 0644))

	store, err := security.NewCertStore(dir, false)
	require.NoError(t, err)
	return store, leaf
}

func TestDeriveKey(t *testing.T) {
	store, leaf := newPKI(t)

	key, err := DeriveKey(store, leaf)
	require.NoError(t, err)

	assert.Equal(t, "ssh-rsa", key.SshKey.Keytype)
	assert.Equal(t, "BEEF", key.Serial)
	assert.Equal(t, "CN=alice,O=Keeto Test", key.Subject)
	assert.Equal(t, "CN=Keeto Test Root CA,O=Keeto Test", key.Issuer)
	assert.Len(t, key.FpMD5, 47)
	assert.Len(t, key.FpSHA256, 43)

	// The emitted key must parse as a standard authorized_keys
	// entry carrying the certificate's public key.
	parsed, _, _, _, err := ssh.ParseAuthorizedKey(
		[]byte(key.SshKey.Keytype + " " + key.SshKey.Key))
	require.NoError(t, err)
	decoded, ok := parsed.(ssh.CryptoPublicKey)
	require.True(t, ok)
	pub, ok := decoded.CryptoPublicKey().(*rsa.PublicKey)
	require.True(t, ok)
	assert.Zero(t, pub.N.Cmp(leaf.PublicKey.(*rsa.PublicKey).N))
}

func TestDeriveKeyUntrustedCertificate(t *testing.T) {
	_, leaf := newPKI(t)

	emptyStore, err := security.NewCertStore(t.TempDir(), false)
	require.NoError(t, err)

	_, err = DeriveKey(emptyStore, leaf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "certificate not valid")
}

func TestAuthorizedKeysLine(t *testing.T) {
	key := &types.KeetoKey{
		SshKey: &types.SshKey{Keytype: "ssh-rsa", Key: "AAAAB3NzaC1yc2EA"},
	}

	from := "*.example.org"
	command := "/usr/bin/backup"

	tests := []struct {
		name    string
		options *types.KeystoreOptions
		want    string
	}{
		{
			name:    "no options",
			options: nil,
			want:    "ssh-rsa AAAAB3NzaC1yc2EA",
		},
		{
			name:    "empty options",
			options: &types.KeystoreOptions{},
			want:    "ssh-rsa AAAAB3NzaC1yc2EA",
		},
		{
			name:    "from only",
			options: &types.KeystoreOptions{FromOption: &from},
			want:    `from="*.example.org" ssh-rsa AAAAB3NzaC1yc2EA`,
		},
		{
			name:    "command only",
			options: &types.KeystoreOptions{CommandOption: &command},
			want:    `command="/usr/bin/backup" ssh-rsa AAAAB3NzaC1yc2EA`,
		},
		{
			name: "from and command",
			options: &types.KeystoreOptions{
				FromOption:    &from,
				CommandOption: &command,
			},
			want: `from="*.example.org",command="/usr/bin/backup" ssh-rsa AAAAB3NzaC1yc2EA`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AuthorizedKeysLine(tt.options, key))
		})
	}
}

func TestAuthorizedKeysLineOptionsParse(t *testing.T) {
	store, leaf := newPKI(t)
	key, err := DeriveKey(store, leaf)
	require.NoError(t, err)

	from := "10.0.0.0/8"
	line := AuthorizedKeysLine(&types.KeystoreOptions{FromOption: &from}, key)

	_, _, options, _, err := ssh.ParseAuthorizedKey([]byte(line))
	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.True(t, strings.HasPrefix(options[0], "from="))
}
