/*
Package config loads the Keeto configuration from a single YAML file.

The configuration covers the LDAP connection (URI, StartTLS, bind credentials,
trusted CA directory for the transport), the server lookup parameters, the
attribute names of the consumed LDAP schema, the per-search timeout, and the
certificate store used to validate provider certificates. Attribute names
default to the Keeto schema so a minimal file only needs the LDAP URI, the
server base DN and uid, and the certificate store directory.
*/
package config
