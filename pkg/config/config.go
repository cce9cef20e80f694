package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default attribute names following the Keeto LDAP schema
const (
	DefaultServerUIDAttr     = "cn"
	DefaultAccessProfileAttr = "keetoAccessProfile"
	DefaultProviderUIDAttr   = "uid"
	DefaultProviderCertAttr  = "userCertificate;binary"
	DefaultTargetGroupAttr   = "member"
	DefaultTargetUIDAttr     = "uid"
	DefaultGroupMemberAttr   = "member"
	DefaultSearchTimeout     = 10
)

// Config holds the Keeto configuration read from a single YAML file
type Config struct {
	// LDAP connection
	LdapURI      string `yaml:"ldap_uri"`
	LdapStartTLS bool   `yaml:"ldap_starttls"`
	LdapBindDN   string `yaml:"ldap_bind_dn"`
	LdapBindPwd  string `yaml:"ldap_bind_pwd"`

	// Trust anchors for the LDAP TLS connection itself, distinct
	// from the certificate store used to validate provider certs.
	CACertsDir string `yaml:"cacerts_dir"`

	// Server lookup
	LdapServerBaseDN            string `yaml:"ldap_server_base_dn"`
	LdapServerSearchScope       string `yaml:"ldap_server_search_scope"`
	LdapServerUIDAttr           string `yaml:"ldap_server_uid_attr"`
	ServerUID                   string `yaml:"server_uid"`
	LdapServerAccessProfileAttr string `yaml:"ldap_server_access_profile_attr"`

	// Key provider attributes
	LdapProviderUIDAttr  string `yaml:"ldap_provider_uid_attr"`
	LdapProviderCertAttr string `yaml:"ldap_provider_cert_attr"`

	// Target keystore attributes
	LdapTargetGroupAttr string `yaml:"ldap_target_group_attr"`
	LdapTargetUIDAttr   string `yaml:"ldap_target_uid_attr"`

	// Group membership attribute used when dereferencing key
	// provider groups; target keystore groups use LdapTargetGroupAttr
	LdapGroupMemberAttr string `yaml:"ldap_group_member_attr"`

	// Per-search timeout in seconds
	LdapSearchTimeout int `yaml:"ldap_search_timeout"`

	// Certificate store for validating provider certificates
	CertStoreDir string `yaml:"cert_store_dir"`
	CheckCRL     bool   `yaml:"check_crl"`
}

// Load reads and validates a configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LdapServerSearchScope == "" {
		c.LdapServerSearchScope = "sub"
	}
	if c.LdapServerUIDAttr == "" {
		c.LdapServerUIDAttr = DefaultServerUIDAttr
	}
	if c.LdapServerAccessProfileAttr == "" {
		c.LdapServerAccessProfileAttr = DefaultAccessProfileAttr
	}
	if c.LdapProviderUIDAttr == "" {
		c.LdapProviderUIDAttr = DefaultProviderUIDAttr
	}
	if c.LdapProviderCertAttr == "" {
		c.LdapProviderCertAttr = DefaultProviderCertAttr
	}
	if c.LdapTargetGroupAttr == "" {
		c.LdapTargetGroupAttr = DefaultTargetGroupAttr
	}
	if c.LdapTargetUIDAttr == "" {
		c.LdapTargetUIDAttr = DefaultTargetUIDAttr
	}
	if c.LdapGroupMemberAttr == "" {
		c.LdapGroupMemberAttr = DefaultGroupMemberAttr
	}
	if c.LdapSearchTimeout == 0 {
		c.LdapSearchTimeout = DefaultSearchTimeout
	}
}

// Validate checks that the configuration is complete enough to run the
// pipeline
func (c *Config) Validate() error {
	if c.LdapURI == "" {
		return fmt.Errorf("ldap_uri must be set")
	}
	if c.LdapServerBaseDN == "" {
		return fmt.Errorf("ldap_server_base_dn must be set")
	}
	if c.ServerUID == "" {
		return fmt.Errorf("server_uid must be set")
	}
	switch c.LdapServerSearchScope {
	case "base", "one", "sub":
	default:
		return fmt.Errorf("ldap_server_search_scope must be one of base, one, sub, got %q", c.LdapServerSearchScope)
	}
	if c.LdapSearchTimeout <= 0 {
		return fmt.Errorf("ldap_search_timeout must be positive, got %d", c.LdapSearchTimeout)
	}
	if c.CertStoreDir == "" {
		return fmt.Errorf("cert_store_dir must be set")
	}
	return nil
}
