/*
Package resolver walks the LDAP directory and resolves the access profiles
that authorize a login uid.

Resolution is a small state machine over the directory: connect with hard TLS
certificate validation (optionally via StartTLS), bind with the configured
credentials, locate the server entry for this host, enumerate the access
profiles it references, classify each profile by object class, materialize key
providers and keystore options, and filter the profiles down to the ones
relevant for the login uid. Direct access profiles are retained iff their key
provider's uid equals the login uid; access-on-behalf profiles are retained
iff any end-entity of their target keystore group carries the login uid.

Every search uses the configured timeout and a size limit of one for
single-valued lookups; exceeding the limit is treated as not-found. The bind
password buffer is wiped immediately after the bind attempt, regardless of
outcome. A failed bind is reported as ErrLdapOffline so the boundary can
distinguish an unreachable directory from a configuration bug.
*/
package resolver
