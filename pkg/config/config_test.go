package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "keeto.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
ldap_uri: ldaps://ldap.example.org
ldap_server_base_dn: ou=servers,dc=example,dc=org
server_uid: gateway
cert_store_dir: /etc/keeto/cert-store
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sub", cfg.LdapServerSearchScope)
	assert.Equal(t, DefaultServerUIDAttr, cfg.LdapServerUIDAttr)
	assert.Equal(t, DefaultAccessProfileAttr, cfg.LdapServerAccessProfileAttr)
	assert.Equal(t, DefaultProviderUIDAttr, cfg.LdapProviderUIDAttr)
	assert.Equal(t, DefaultProviderCertAttr, cfg.LdapProviderCertAttr)
	assert.Equal(t, DefaultTargetGroupAttr, cfg.LdapTargetGroupAttr)
	assert.Equal(t, DefaultTargetUIDAttr, cfg.LdapTargetUIDAttr)
	assert.Equal(t, DefaultGroupMemberAttr, cfg.LdapGroupMemberAttr)
	assert.Equal(t, DefaultSearchTimeout, cfg.LdapSearchTimeout)
	assert.False(t, cfg.CheckCRL)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
ldap_uri: ldap://ldap.example.org:389
ldap_starttls: true
ldap_bind_dn: cn=keeto,ou=tech,dc=example,dc=org
ldap_bind_pwd: secret
cacerts_dir: /etc/ssl/certs
ldap_server_base_dn: ou=servers,dc=example,dc=org
ldap_server_search_scope: one
ldap_server_uid_attr: uid
server_uid: gateway
ldap_server_access_profile_attr: keetoAccessProfile
ldap_provider_uid_attr: uid
ldap_provider_cert_attr: userCertificate;binary
ldap_target_group_attr: member
ldap_target_uid_attr: uid
ldap_search_timeout: 5
cert_store_dir: /etc/keeto/cert-store
check_crl: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.LdapStartTLS)
	assert.Equal(t, "cn=keeto,ou=tech,dc=example,dc=org", cfg.LdapBindDN)
	assert.Equal(t, "one", cfg.LdapServerSearchScope)
	assert.Equal(t, 5, cfg.LdapSearchTimeout)
	assert.True(t, cfg.CheckCRL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing uri",
			mutate:  func(c *Config) { c.LdapURI = "" },
			wantErr: "ldap_uri",
		},
		{
			name:    "missing base dn",
			mutate:  func(c *Config) { c.LdapServerBaseDN = "" },
			wantErr: "ldap_server_base_dn",
		},
		{
			name:    "missing server uid",
			mutate:  func(c *Config) { c.ServerUID = "" },
			wantErr: "server_uid",
		},
		{
			name:    "bad scope",
			mutate:  func(c *Config) { c.LdapServerSearchScope = "tree" },
			wantErr: "ldap_server_search_scope",
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.LdapSearchTimeout = -1 },
			wantErr: "ldap_search_timeout",
		},
		{
			name:    "missing cert store",
			mutate:  func(c *Config) { c.CertStoreDir = "" },
			wantErr: "cert_store_dir",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				LdapURI:          "ldaps://ldap.example.org",
				LdapServerBaseDN: "ou=servers,dc=example,dc=org",
				ServerUID:        "gateway",
				CertStoreDir:     "/etc/keeto/cert-store",
			}
			cfg.applyDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
