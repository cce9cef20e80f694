package security

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"strings"
)

// ErrUnsupportedKeyType is returned when a certificate's public key
// algorithm is outside the supported set. Only RSA is accepted in this
// revision.
var ErrUnsupportedKeyType = fmt.Errorf("unsupported key type")

// Serial returns the certificate serial number as uppercase hex with
// no separators and no 0x prefix, matching the minimal ASN.1 INTEGER
// value
func Serial(cert *x509.Certificate) string {
	if cert == nil {
		panic("security: cert == nil")
	}
	return strings.ToUpper(cert.SerialNumber.Text(16))
}

// Issuer returns the certificate issuer rendered as an RFC 2253
// distinguished name
func Issuer(cert *x509.Certificate) string {
	if cert == nil {
		panic("security: cert == nil")
	}
	return cert.Issuer.String()
}

// Subject returns the certificate subject rendered as an RFC 2253
// distinguished name
func Subject(cert *x509.Certificate) string {
	if cert == nil {
		panic("security: cert == nil")
	}
	return cert.Subject.String()
}

// PublicKey extracts the RSA public key embedded in a certificate
func PublicKey(cert *x509.Certificate) (*rsa.PublicKey, error) {
	if cert == nil {
		panic("security: cert == nil")
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKeyType, cert.PublicKeyAlgorithm)
	}
	return pub, nil
}
