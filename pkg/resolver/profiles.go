package resolver

import (
	"crypto/x509"
	"fmt"

	"github.com/go-ldap/ldap/v3"

	"github.com/flix-/keeto/pkg/types"
)

// Object classes and attributes of the Keeto access profile schema.
// The object class string is the variant discriminator at the directory
// boundary only; inside the pipeline profiles are typed.
const (
	objectClassAttr = "objectClass"

	objectClassDAP  = "keetoDirectAccessProfile"
	objectClassAOBP = "keetoAccessOnBehalfProfile"

	attrKeyProvider     = "keetoKeyProvider"
	attrKeystoreOptions = "keetoKeystoreOptions"
	attrTargetKeystore  = "keetoTargetKeystore"

	attrKeystoreOptionFrom    = "keetoKeystoreOptionFrom"
	attrKeystoreOptionCommand = "keetoKeystoreOptionCommand"
)

// populate drives the resolution state machine: locate the server
// entry, enumerate its access profiles, materialize them and filter
// them down to the ones relevant for the login uid
func (r *Resolver) populate(info *types.KeetoInfo) error {
	profileDNs, err := r.locateServer(info)
	if err != nil {
		return err
	}

	for _, dn := range profileDNs {
		if err := r.addProfile(info, dn); err != nil {
			return err
		}
	}

	r.filterDirectProfiles(info)
	r.filterOnBehalfProfiles(info)
	return nil
}

// locateServer finds the server entry for this host and returns the
// access profile DNs it references
func (r *Resolver) locateServer(info *types.KeetoInfo) ([]string, error) {
	filter, err := searchFilter(r.cfg.LdapServerUIDAttr, r.cfg.ServerUID)
	if err != nil {
		return nil, err
	}

	entry, err := r.searchOne(r.cfg.LdapServerBaseDN,
		searchScope(r.cfg.LdapServerSearchScope), filter,
		[]string{r.cfg.LdapServerAccessProfileAttr})
	if err != nil {
		return nil, fmt.Errorf("failed to locate server entry for %q: %w", r.cfg.ServerUID, err)
	}
	info.ServerDN = entry.DN
	r.logger.Debug().Str("server_dn", entry.DN).Msg("located server entry")

	profileDNs := entry.GetAttributeValues(r.cfg.LdapServerAccessProfileAttr)
	if len(profileDNs) == 0 {
		return nil, fmt.Errorf("server entry %q references no access profiles", entry.DN)
	}
	return profileDNs, nil
}

// addProfile reads an access profile entry, classifies it by object
// class and appends it to the matching profile list. Entries with
// neither known object class are skipped.
func (r *Resolver) addProfile(info *types.KeetoInfo, dn string) error {
	entry, err := r.readEntry(dn, []string{objectClassAttr, attrKeyProvider,
		attrKeystoreOptions, attrTargetKeystore})
	if err != nil {
		return fmt.Errorf("failed to read access profile %q: %w", dn, err)
	}

	name, err := rdnValue(dn)
	if err != nil {
		return err
	}

	switch classifyProfile(entry.GetAttributeValues(objectClassAttr)) {
	case types.ProfileTypeDirect:
		r.logger.Debug().Str("profile", name).Msg("got direct access profile")
		keyProviderDN, err := singleValue(entry, attrKeyProvider)
		if err != nil {
			return fmt.Errorf("direct access profile %q: %w", dn, err)
		}
		keystoreOptionsDN, err := singleValue(entry, attrKeystoreOptions)
		if err != nil {
			return fmt.Errorf("direct access profile %q: %w", dn, err)
		}
		info.DirectProfiles = append(info.DirectProfiles, &types.DirectAccessProfile{
			DN:                dn,
			Name:              name,
			KeyProviderDN:     keyProviderDN,
			KeystoreOptionsDN: keystoreOptionsDN,
		})
	case types.ProfileTypeOnBehalf:
		r.logger.Debug().Str("profile", name).Msg("got access on behalf profile")
		targetKeystoreGroupDN, err := singleValue(entry, attrTargetKeystore)
		if err != nil {
			return fmt.Errorf("access on behalf profile %q: %w", dn, err)
		}
		keyProviderGroupDN, err := singleValue(entry, attrKeyProvider)
		if err != nil {
			return fmt.Errorf("access on behalf profile %q: %w", dn, err)
		}
		keystoreOptionsDN, err := singleValue(entry, attrKeystoreOptions)
		if err != nil {
			return fmt.Errorf("access on behalf profile %q: %w", dn, err)
		}
		info.OnBehalfProfiles = append(info.OnBehalfProfiles, &types.AccessOnBehalfProfile{
			DN:                    dn,
			Name:                  name,
			TargetKeystoreGroupDN: targetKeystoreGroupDN,
			KeyProviderGroupDN:    keyProviderGroupDN,
			KeystoreOptionsDN:     keystoreOptionsDN,
		})
	default:
		r.logger.Warn().Str("dn", dn).Msg("skipping access profile with unknown object class")
	}
	return nil
}

// classifyProfile picks the profile variant from the entry's object
// classes. First match in the order direct, on-behalf wins.
func classifyProfile(objectClasses []string) types.ProfileType {
	onBehalf := false
	for _, oc := range objectClasses {
		switch oc {
		case objectClassDAP:
			return types.ProfileTypeDirect
		case objectClassAOBP:
			onBehalf = true
		}
	}
	if onBehalf {
		return types.ProfileTypeOnBehalf
	}
	return types.ProfileTypeUnknown
}

// singleValue returns the first value of a required attribute
func singleValue(entry *ldap.Entry, attr string) (string, error) {
	values := entry.GetAttributeValues(attr)
	if len(values) == 0 {
		return "", fmt.Errorf("missing required attribute %q", attr)
	}
	return values[0], nil
}

// filterDirectProfiles materializes the key provider of each direct
// access profile and retains the profile iff the provider's uid equals
// the login uid
func (r *Resolver) filterDirectProfiles(info *types.KeetoInfo) {
	kept := info.DirectProfiles[:0]
	for _, profile := range info.DirectProfiles {
		provider, err := r.getKeyProvider(profile.KeyProviderDN)
		if err != nil {
			r.logger.Warn().Err(err).Str("profile", profile.Name).
				Msg("dropping direct access profile")
			continue
		}
		if provider.UID != info.UID {
			r.logger.Debug().Str("profile", profile.Name).
				Str("provider_uid", provider.UID).
				Msg("dropping irrelevant direct access profile")
			continue
		}
		profile.KeyProvider = provider
		profile.KeystoreOptions = r.getKeystoreOptions(profile.KeystoreOptionsDN)
		kept = append(kept, profile)
	}
	info.DirectProfiles = kept
}

// filterOnBehalfProfiles retains each access on behalf profile iff any
// end-entity of its target keystore group carries the login uid, then
// materializes the profile's key provider pool
func (r *Resolver) filterOnBehalfProfiles(info *types.KeetoInfo) {
	kept := info.OnBehalfProfiles[:0]
	for _, profile := range info.OnBehalfProfiles {
		if !r.isRelevantOnBehalfProfile(profile, info.UID) {
			r.logger.Debug().Str("profile", profile.Name).
				Msg("dropping irrelevant access on behalf profile")
			continue
		}
		providers := r.getKeyProviderGroup(profile.KeyProviderGroupDN)
		if len(providers) == 0 {
			r.logger.Warn().Str("profile", profile.Name).
				Msg("dropping access on behalf profile without usable key providers")
			continue
		}
		profile.KeyProviders = providers
		profile.KeystoreOptions = r.getKeystoreOptions(profile.KeystoreOptionsDN)
		kept = append(kept, profile)
	}
	info.OnBehalfProfiles = kept
}

// isRelevantOnBehalfProfile dereferences the profile's target keystore
// group and reports whether any member end-entity's uid equals the
// login uid. Profiles with an empty or unreadable target group are not
// relevant.
func (r *Resolver) isRelevantOnBehalfProfile(profile *types.AccessOnBehalfProfile, uid string) bool {
	group, err := r.readEntry(profile.TargetKeystoreGroupDN,
		[]string{r.cfg.LdapTargetGroupAttr})
	if err != nil {
		r.logger.Warn().Err(err).Str("profile", profile.Name).
			Msg("failed to read target keystore group")
		return false
	}

	for _, eeDN := range group.GetAttributeValues(r.cfg.LdapTargetGroupAttr) {
		entry, err := r.readEntry(eeDN, []string{r.cfg.LdapTargetUIDAttr})
		if err != nil {
			r.logger.Warn().Err(err).Str("target_ee", eeDN).
				Msg("failed to read target end-entity")
			continue
		}
		if entry.GetAttributeValue(r.cfg.LdapTargetUIDAttr) == uid {
			return true
		}
	}
	return false
}

// getKeyProvider materializes a key provider entry: its uid and the
// first certificate value that decodes
func (r *Resolver) getKeyProvider(dn string) (*types.KeyProvider, error) {
	entry, err := r.readEntry(dn, []string{r.cfg.LdapProviderUIDAttr,
		r.cfg.LdapProviderCertAttr})
	if err != nil {
		return nil, fmt.Errorf("failed to read key provider %q: %w", dn, err)
	}

	uid := entry.GetAttributeValue(r.cfg.LdapProviderUIDAttr)
	if uid == "" {
		return nil, fmt.Errorf("key provider %q has no uid", dn)
	}

	cert := r.decodeFirstCertificate(entry.GetRawAttributeValues(r.cfg.LdapProviderCertAttr))
	if cert == nil {
		return nil, fmt.Errorf("key provider %q has no decodable certificate", dn)
	}

	return &types.KeyProvider{DN: dn, UID: uid, Certificate: cert}, nil
}

// getKeyProviderGroup dereferences a key provider group and
// materializes every member that yields a certificate. Members that
// fail to materialize are skipped.
func (r *Resolver) getKeyProviderGroup(groupDN string) []*types.KeyProvider {
	group, err := r.readEntry(groupDN, []string{r.cfg.LdapGroupMemberAttr})
	if err != nil {
		r.logger.Warn().Err(err).Str("group", groupDN).
			Msg("failed to read key provider group")
		return nil
	}

	var providers []*types.KeyProvider
	for _, memberDN := range group.GetAttributeValues(r.cfg.LdapGroupMemberAttr) {
		provider, err := r.getKeyProvider(memberDN)
		if err != nil {
			r.logger.Warn().Err(err).Str("provider", memberDN).
				Msg("skipping key provider")
			continue
		}
		providers = append(providers, provider)
	}
	return providers
}

// decodeFirstCertificate returns the first DER value that parses as an
// X.509 certificate; subsequent values are ignored
func (r *Resolver) decodeFirstCertificate(values [][]byte) *x509.Certificate {
	for _, der := range values {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			r.logger.Warn().Err(err).Msg("cannot decode certificate, trying next value")
			continue
		}
		return cert
	}
	return nil
}

// getKeystoreOptions reads the optional authorized_keys options of a
// profile. Both attributes can be absent; an unreadable entry leaves
// the options empty.
func (r *Resolver) getKeystoreOptions(dn string) *types.KeystoreOptions {
	options := &types.KeystoreOptions{DN: dn}
	if dn == "" {
		return options
	}

	entry, err := r.readEntry(dn, []string{attrKeystoreOptionFrom,
		attrKeystoreOptionCommand})
	if err != nil {
		r.logger.Warn().Err(err).Str("options_dn", dn).
			Msg("failed to read keystore options")
		return options
	}

	if values := entry.GetAttributeValues(attrKeystoreOptionFrom); len(values) > 0 {
		options.FromOption = &values[0]
	}
	if values := entry.GetAttributeValues(attrKeystoreOptionCommand); len(values) > 0 {
		options.CommandOption = &values[0]
	}
	return options
}
