package types

import (
	"crypto/x509"
)

// KeetoInfo is the resolution context for a single login attempt.
// It owns the access profile lists populated by the resolver.
type KeetoInfo struct {
	UID        string
	ServerDN   string
	LdapOnline bool

	// Profiles in LDAP return order. Direct profiles are emitted
	// before on-behalf profiles, which matters for sshd's
	// first-match semantics.
	DirectProfiles   []*DirectAccessProfile
	OnBehalfProfiles []*AccessOnBehalfProfile
}

// ProfileType discriminates access profile variants at the LDAP boundary
type ProfileType string

const (
	ProfileTypeDirect   ProfileType = "direct-access"
	ProfileTypeOnBehalf ProfileType = "access-on-behalf"
	ProfileTypeUnknown  ProfileType = "unknown"
)

// DirectAccessProfile authorizes the owning key provider's own uid
type DirectAccessProfile struct {
	DN                string
	Name              string
	KeyProviderDN     string
	KeystoreOptionsDN string

	KeyProvider     *KeyProvider
	KeystoreOptions *KeystoreOptions
}

// AccessOnBehalfProfile authorizes members of a target keystore group
// to use the keys of a pool of providers
type AccessOnBehalfProfile struct {
	DN                    string
	Name                  string
	TargetKeystoreGroupDN string
	KeyProviderGroupDN    string
	KeystoreOptionsDN     string

	KeyProviders    []*KeyProvider
	KeystoreOptions *KeystoreOptions
}

// KeyProvider is an LDAP end-entity holding one or more certificates.
// A provider is relevant for direct access iff its uid equals the
// login uid.
type KeyProvider struct {
	DN          string
	UID         string
	Certificate *x509.Certificate
	Keys        []*KeetoKey
}

// KeystoreOptions carries optional authorized_keys options attached to
// a profile. Both options are nullable.
type KeystoreOptions struct {
	DN            string
	FromOption    *string
	CommandOption *string
}

// SshKey is an SSH public key in authorized_keys form: keytype plus the
// base64 encoded wire-format blob
type SshKey struct {
	Keytype string
	Key     string
}

// KeetoKey is the per-certificate derivation result: the SSH key, its
// fingerprints and the certificate identity fields
type KeetoKey struct {
	Certificate *x509.Certificate
	SshKey      *SshKey
	FpMD5       string
	FpSHA256    string
	Issuer      string
	Subject     string
	Serial      string
}
