/*
Package sshkey serializes RSA public keys into the OpenSSH wire format and
derives key fingerprints.

The wire format is the length-prefixed concatenation of the keytype string,
the public exponent and the modulus. Integers are emitted in their minimal
big-endian form with a conditional zero pad byte when the most significant bit
is set. The encoding is byte-compatible with OpenSSH; any deviation in pad
byte handling silently produces keys that refuse to authenticate, so the
serializer is hand-built rather than delegated and is cross-checked against
golang.org/x/crypto/ssh in the tests.

Fingerprints match ssh-keygen output: MD5 as colon-separated lowercase hex,
SHA-256 as unpadded base64.
*/
package sshkey
