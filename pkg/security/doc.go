/*
Package security implements the X.509 trust machinery for Keeto: the
process-wide certificate store, chain validation and certificate inspection.

The certificate store is loaded once from a PEM directory of CA certificates
and CRLs and reused for every login. Validation verifies a candidate
end-entity certificate under the SSL client purpose and, when enabled, checks
CRLs for the full verified chain. A failed chain yields a verdict plus a
human-readable diagnostic rather than an error; errors are reserved for
infrastructure failures.

Inspection renders the certificate identity fields the way the rest of the
pipeline consumes them: serial as uppercase hex, issuer and subject as
RFC 2253 distinguished names, and the embedded public key (RSA only in this
revision).

The package also provides Zeroize for wiping secrets such as the LDAP bind
password.
*/
package security
