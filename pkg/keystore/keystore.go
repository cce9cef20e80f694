package keystore

import (
	"crypto/x509"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/flix-/keeto/pkg/config"
	"github.com/flix-/keeto/pkg/log"
	"github.com/flix-/keeto/pkg/resolver"
	"github.com/flix-/keeto/pkg/security"
	"github.com/flix-/keeto/pkg/sshkey"
	"github.com/flix-/keeto/pkg/types"
)

// sshKeytype is the only key algorithm supported in this revision
const sshKeytype = "ssh-rsa"

// Build runs the full authorization pipeline for a login uid: resolve
// the access profiles from the directory, validate every provider
// certificate against the trust store and derive an authorized_keys
// line for each surviving certificate. Direct access profiles are
// emitted before on-behalf profiles, in resolution order.
func Build(cfg *config.Config, uid string) ([]string, error) {
	if cfg == nil {
		panic("keystore: cfg == nil")
	}

	logger := log.WithComponent("keystore").With().
		Str("login_id", uuid.NewString()).
		Str("uid", uid).
		Logger()

	store, err := security.OpenCertStore(cfg.CertStoreDir, cfg.CheckCRL)
	if err != nil {
		return nil, fmt.Errorf("failed to open certificate store: %w", err)
	}

	info, err := resolver.Resolve(cfg, uid)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, profile := range info.DirectProfiles {
		lines = append(lines, profileLines(logger, store, profile.Name,
			profile.KeystoreOptions, profile.KeyProvider)...)
	}
	for _, profile := range info.OnBehalfProfiles {
		lines = append(lines, profileLines(logger, store, profile.Name,
			profile.KeystoreOptions, profile.KeyProviders...)...)
	}

	logger.Info().Int("keys", len(lines)).Msg("authorized keys assembled")
	return lines, nil
}

// profileLines derives the authorized_keys lines contributed by one
// profile's key providers. Certificates that fail validation or key
// derivation are dropped with a log record.
func profileLines(logger zerolog.Logger, store *security.CertStore, name string,
	options *types.KeystoreOptions, providers ...*types.KeyProvider) []string {

	var lines []string
	for _, provider := range providers {
		if provider == nil || provider.Certificate == nil {
			continue
		}
		key, err := DeriveKey(store, provider.Certificate)
		if err != nil {
			logger.Warn().Err(err).
				Str("profile", name).
				Str("provider", provider.DN).
				Msg("dropping certificate")
			continue
		}
		provider.Keys = append(provider.Keys, key)
		logger.Info().
			Str("profile", name).
			Str("serial", key.Serial).
			Str("fingerprint", key.FpSHA256).
			Msg("derived authorized key")
		lines = append(lines, AuthorizedKeysLine(options, key))
	}
	return lines
}

// DeriveKey validates a certificate against the trust store and
// derives the SSH key material from it
func DeriveKey(store *security.CertStore, cert *x509.Certificate) (*types.KeetoKey, error) {
	valid, diagnostic, err := store.Validate(cert)
	if err != nil {
		return nil, fmt.Errorf("failed to validate certificate: %w", err)
	}
	if !valid {
		return nil, fmt.Errorf("certificate not valid (%s)", diagnostic)
	}

	pub, err := security.PublicKey(cert)
	if err != nil {
		return nil, fmt.Errorf("failed to extract public key from certificate: %w", err)
	}

	blob, err := sshkey.SerializeRSA(sshKeytype, pub)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain ssh key blob: %w", err)
	}
	fpMD5, err := sshkey.Fingerprint(blob, sshkey.DigestMD5)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain ssh key md5 fingerprint: %w", err)
	}
	fpSHA256, err := sshkey.Fingerprint(blob, sshkey.DigestSHA256)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain ssh key sha256 fingerprint: %w", err)
	}

	return &types.KeetoKey{
		Certificate: cert,
		SshKey: &types.SshKey{
			Keytype: sshKeytype,
			Key:     sshkey.Encode(blob),
		},
		FpMD5:    fpMD5,
		FpSHA256: fpSHA256,
		Issuer:   security.Issuer(cert),
		Subject:  security.Subject(cert),
		Serial:   security.Serial(cert),
	}, nil
}

// AuthorizedKeysLine renders one authorized_keys entry: the optional
// option string followed by the keytype and the base64 encoded key
func AuthorizedKeysLine(options *types.KeystoreOptions, key *types.KeetoKey) string {
	var opts []string
	if options != nil {
		if options.FromOption != nil {
			opts = append(opts, fmt.Sprintf("from=%q", *options.FromOption))
		}
		if options.CommandOption != nil {
			opts = append(opts, fmt.Sprintf("command=%q", *options.CommandOption))
		}
	}

	entry := key.SshKey.Keytype + " " + key.SshKey.Key
	if len(opts) == 0 {
		return entry
	}
	return strings.Join(opts, ",") + " " + entry
}
