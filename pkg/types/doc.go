/*
Package types defines the core data structures used across Keeto.

A KeetoInfo is built once per login attempt and owns the access profiles
resolved from the directory. Profiles come in two variants: direct access
profiles, which authorize the key provider's own uid, and access-on-behalf
profiles, which authorize members of a target keystore group to use a pool of
providers' keys. Each materialized provider owns its certificate and the
KeetoKeys derived from it.
*/
package types
