package security

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/flix-/keeto/pkg/log"
)

// CertStore holds the process-wide trust anchor set: CA certificates
// and CRLs loaded from a PEM directory. Validation across many logins
// reuses the same anchors, so the store is constructed once and
// treated as read-only thereafter.
type CertStore struct {
	dir      string
	checkCRL bool

	roots         *x509.CertPool
	intermediates *x509.CertPool
	cas           []*x509.Certificate
	crls          []*x509.RevocationList
}

var (
	storeMu     sync.Mutex
	globalStore *CertStore
)

// OpenCertStore returns the process-wide certificate store, creating
// it on first use. Subsequent calls return the existing store without
// re-reading the directory, regardless of the arguments.
func OpenCertStore(certStoreDir string, checkCRL bool) (*CertStore, error) {
	storeMu.Lock()
	defer storeMu.Unlock()

	if globalStore != nil {
		return globalStore, nil
	}

	store, err := NewCertStore(certStoreDir, checkCRL)
	if err != nil {
		return nil, err
	}
	globalStore = store
	return globalStore, nil
}

// FreeCertStore releases the process-wide anchor set. Safe to call if
// the store was never initialized.
func FreeCertStore() {
	storeMu.Lock()
	defer storeMu.Unlock()
	globalStore = nil
}

// NewCertStore loads every PEM encoded CA certificate and CRL from the
// given directory. The directory is typically maintained with c_rehash;
// files are read by content, so the hash links are not required for
// correctness.
func NewCertStore(certStoreDir string, checkCRL bool) (*CertStore, error) {
	if certStoreDir == "" {
		panic("security: cert_store_dir == \"\"")
	}

	entries, err := os.ReadDir(certStoreDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cert store directory %q: %w", certStoreDir, err)
	}

	store := &CertStore{
		dir:           certStoreDir,
		checkCRL:      checkCRL,
		roots:         x509.NewCertPool(),
		intermediates: x509.NewCertPool(),
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(certStoreDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read cert store file %q: %w", path, err)
		}
		if err := store.addPEM(data); err != nil {
			log.WithComponent("security").Warn().
				Err(err).
				Str("file", path).
				Msg("skipping unparseable cert store file")
		}
	}

	log.WithComponent("security").Debug().
		Str("dir", certStoreDir).
		Int("cas", len(store.cas)).
		Int("crls", len(store.crls)).
		Bool("check_crl", checkCRL).
		Msg("certificate store loaded")

	return store, nil
}

// addPEM parses all PEM blocks in data and adds certificates and CRLs
// to the anchor set
func (s *CertStore) addPEM(data []byte) error {
	found := false
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		switch block.Type {
		case "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return fmt.Errorf("failed to parse certificate: %w", err)
			}
			s.addCA(cert)
			found = true
		case "X509 CRL":
			crl, err := x509.ParseRevocationList(block.Bytes)
			if err != nil {
				return fmt.Errorf("failed to parse crl: %w", err)
			}
			s.crls = append(s.crls, crl)
			found = true
		}
	}
	if !found {
		return fmt.Errorf("no certificate or crl pem block found")
	}
	return nil
}

func (s *CertStore) addCA(cert *x509.Certificate) {
	s.cas = append(s.cas, cert)
	// Self-signed certs act as roots, everything else as chain
	// material.
	if bytes.Equal(cert.RawIssuer, cert.RawSubject) {
		s.roots.AddCert(cert)
	} else {
		s.intermediates.AddCert(cert)
	}
}

// Validate verifies an end-entity certificate against the anchor set
// under the SSL client purpose. The returned bool is the verdict; on a
// failed chain the diagnostic carries the human-readable verification
// error and the call itself still succeeds. An error is returned only
// for infrastructure failures.
func (s *CertStore) Validate(cert *x509.Certificate) (bool, string, error) {
	if s == nil {
		panic("security: cert store == nil")
	}
	if cert == nil {
		panic("security: cert == nil")
	}

	opts := x509.VerifyOptions{
		Roots:         s.roots,
		Intermediates: s.intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	chains, err := cert.Verify(opts)
	if err != nil {
		return false, verifyDiagnostic(err), nil
	}

	if s.checkCRL {
		// CRL checking covers every certificate in the verified
		// chain, not merely the leaf.
		for _, chain := range chains {
			ok, diag := s.checkChainCRLs(chain)
			if !ok {
				return false, diag, nil
			}
		}
	}

	return true, "", nil
}

// checkChainCRLs checks every certificate of a verified chain against
// the loaded CRLs
func (s *CertStore) checkChainCRLs(chain []*x509.Certificate) (bool, string) {
	for i, cert := range chain {
		// The issuer of the chain's last element is itself.
		issuer := cert
		if i+1 < len(chain) {
			issuer = chain[i+1]
		}

		crl := s.findCRL(cert.RawIssuer)
		if crl == nil {
			return false, "unable to get certificate CRL"
		}
		if err := crl.CheckSignatureFrom(issuer); err != nil {
			return false, "CRL signature failure"
		}
		for _, revoked := range crl.RevokedCertificateEntries {
			if revoked.SerialNumber.Cmp(cert.SerialNumber) == 0 {
				return false, "certificate revoked"
			}
		}
	}
	return true, ""
}

// findCRL returns the first CRL issued by the given issuer DN
func (s *CertStore) findCRL(rawIssuer []byte) *x509.RevocationList {
	for _, crl := range s.crls {
		if bytes.Equal(crl.RawIssuer, rawIssuer) {
			return crl
		}
	}
	return nil
}

// verifyDiagnostic maps chain verification failures to the familiar
// short verification error strings
func verifyDiagnostic(err error) string {
	switch e := err.(type) {
	case x509.UnknownAuthorityError:
		return "unable to get issuer certificate"
	case x509.CertificateInvalidError:
		switch e.Reason {
		case x509.Expired:
			return "certificate has expired"
		case x509.NotAuthorizedToSign:
			return "invalid CA certificate"
		}
	}
	return err.Error()
}
