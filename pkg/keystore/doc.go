/*
Package keystore assembles the authorized_keys output for a login attempt.

It ties the pipeline together: the resolver yields the access profiles with
their provider certificates, the certificate store gates each certificate, and
the serializer and inspector turn each surviving certificate into an
authorized_keys line, optionally prefixed with the profile's keystore options
(from and command). The system is fail-closed: a certificate or profile that
cannot be fully derived contributes no key, and a fatal error yields an empty
key set.
*/
package keystore
