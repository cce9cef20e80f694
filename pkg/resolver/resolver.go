package resolver

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog"

	"github.com/flix-/keeto/pkg/config"
	"github.com/flix-/keeto/pkg/log"
	"github.com/flix-/keeto/pkg/security"
	"github.com/flix-/keeto/pkg/types"
)

// maxFilterLength bounds constructed search filters. Overflowing it is
// a misconfiguration, not a runtime condition.
const maxFilterLength = 1024

// baseObjectFilter matches any entry on a base-scope read
const baseObjectFilter = "(objectClass=*)"

var (
	// ErrLdapOffline reports a failed bind. Advisory at the
	// boundary: the pipeline aborts cleanly and the login proceeds
	// without keys.
	ErrLdapOffline = fmt.Errorf("ldap server offline")

	// ErrNotFound reports an empty or size-limited search result
	ErrNotFound = fmt.Errorf("entry not found")
)

// searcher is the single directory operation the resolver needs after
// binding. *ldap.Conn satisfies it.
type searcher interface {
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
}

// binder performs the simple bind. *ldap.Conn satisfies it.
type binder interface {
	SimpleBind(req *ldap.SimpleBindRequest) (*ldap.SimpleBindResult, error)
}

// Resolver walks the directory and populates a KeetoInfo with the
// access profiles that authorize a login uid
type Resolver struct {
	cfg    *config.Config
	conn   searcher
	logger zerolog.Logger
}

// Resolve connects to the directory and resolves the access profiles
// for the given login uid. The returned KeetoInfo reports LdapOnline
// false together with ErrLdapOffline when the bind failed.
func Resolve(cfg *config.Config, uid string) (*types.KeetoInfo, error) {
	if cfg == nil {
		panic("resolver: cfg == nil")
	}
	if uid == "" {
		return nil, fmt.Errorf("login uid must not be empty")
	}

	info := &types.KeetoInfo{UID: uid}

	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ldap server: %w", err)
	}
	defer conn.Close()

	pwd := []byte(cfg.LdapBindPwd)
	if err := bind(conn, cfg.LdapBindDN, pwd); err != nil {
		info.LdapOnline = false
		log.WithComponent("resolver").Warn().
			Err(err).
			Str("bind_dn", cfg.LdapBindDN).
			Msg("failed to bind to ldap server")
		return info, ErrLdapOffline
	}
	info.LdapOnline = true

	r := &Resolver{
		cfg:    cfg,
		conn:   conn,
		logger: log.WithComponent("resolver").With().Str("uid", uid).Logger(),
	}
	if err := r.populate(info); err != nil {
		return nil, err
	}
	return info, nil
}

// connect dials the configured LDAP URI with hard TLS certificate
// validation and optionally negotiates StartTLS
func connect(cfg *config.Config) (*ldap.Conn, error) {
	tlsCfg, err := tlsConfig(cfg.CACertsDir)
	if err != nil {
		return nil, err
	}

	conn, err := ldap.DialURL(cfg.LdapURI, ldap.DialWithTLSConfig(tlsCfg))
	if err != nil {
		return nil, fmt.Errorf("failed to dial %q: %w", cfg.LdapURI, err)
	}
	conn.SetTimeout(time.Duration(cfg.LdapSearchTimeout) * time.Second)

	if cfg.LdapStartTLS {
		if err := conn.StartTLS(tlsCfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to negotiate starttls: %w", err)
		}
	}
	return conn, nil
}

// tlsConfig builds the TLS client configuration for the directory
// connection. Certificate validation is never relaxed; cacertsDir adds
// private anchors on top of nothing, so an unknown server cert fails
// the handshake.
func tlsConfig(cacertsDir string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if cacertsDir == "" {
		return cfg, nil
	}

	entries, err := os.ReadDir(cacertsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cacerts directory %q: %w", cacertsDir, err)
	}
	pool := x509.NewCertPool()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(cacertsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read ca cert %q: %w", entry.Name(), err)
		}
		pool.AppendCertsFromPEM(data)
	}
	cfg.RootCAs = pool
	return cfg, nil
}

// bind performs a simple bind and wipes the password buffer after the
// attempt, success or failure, before any further work
func bind(conn binder, bindDN string, pwd []byte) error {
	req := ldap.NewSimpleBindRequest(bindDN, string(pwd), nil)
	_, err := conn.SimpleBind(req)
	security.Zeroize(pwd)
	return err
}

// searchFilter builds an equality filter with proper escaping of the
// value. A filter that does not fit the fixed buffer is a fatal
// misconfiguration.
func searchFilter(attr, value string) (string, error) {
	filter := fmt.Sprintf("(%s=%s)", attr, ldap.EscapeFilter(value))
	if len(filter) > maxFilterLength {
		return "", fmt.Errorf("search filter exceeds %d bytes", maxFilterLength)
	}
	return filter, nil
}

// searchScope maps the configured scope name to the wire value
func searchScope(scope string) int {
	switch scope {
	case "base":
		return ldap.ScopeBaseObject
	case "one":
		return ldap.ScopeSingleLevel
	default:
		return ldap.ScopeWholeSubtree
	}
}

// searchOne runs a search expecting a single entry. Every search uses
// the configured timeout and sizelimit 1; exceeding the limit is
// treated as not-found.
func (r *Resolver) searchOne(baseDN string, scope int, filter string, attrs []string) (*ldap.Entry, error) {
	req := ldap.NewSearchRequest(baseDN, scope, ldap.NeverDerefAliases,
		1, r.cfg.LdapSearchTimeout, false, filter, attrs, nil)
	res, err := r.conn.Search(req)
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) ||
			ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, baseDN)
		}
		return nil, fmt.Errorf("search under %q failed: %w", baseDN, err)
	}
	if len(res.Entries) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, baseDN)
	}
	return res.Entries[0], nil
}

// readEntry performs a base-scope read of a DN
func (r *Resolver) readEntry(dn string, attrs []string) (*ldap.Entry, error) {
	return r.searchOne(dn, ldap.ScopeBaseObject, baseObjectFilter, attrs)
}

// rdnValue extracts the value of the most specific relative component
// of a DN; it names the entry (cn=backup,ou=profiles,... -> backup)
func rdnValue(dn string) (string, error) {
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return "", fmt.Errorf("failed to parse dn %q: %w", dn, err)
	}
	if len(parsed.RDNs) == 0 || len(parsed.RDNs[0].Attributes) == 0 {
		return "", fmt.Errorf("dn %q has no rdn", dn)
	}
	return parsed.RDNs[0].Attributes[0].Value, nil
}
