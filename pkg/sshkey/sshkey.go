package sshkey

import (
	"bytes"
	"crypto/md5"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// Digest selects the fingerprint algorithm
type Digest string

const (
	DigestMD5    Digest = "md5"
	DigestSHA256 Digest = "sha256"
)

// ErrUnknownDigest is returned for fingerprint algorithms outside the
// supported set
var ErrUnknownDigest = fmt.Errorf("unknown digest algorithm")

// SerializeRSA converts an RSA public key into the SSH wire-format
// blob: keytype, exponent and modulus in order, each prefixed with a
// 32-bit big-endian length. Integer fields whose most significant bit
// is set get a single leading zero byte so a two's-complement reader
// does not interpret them as negative; the length prefix accounts for
// that pad byte.
func SerializeRSA(keytype string, pub *rsa.PublicKey) ([]byte, error) {
	if pub == nil || pub.N == nil {
		panic("sshkey: rsa public key == nil")
	}
	if keytype == "" {
		return nil, fmt.Errorf("keytype must not be empty")
	}

	var blob bytes.Buffer
	putString(&blob, []byte(keytype))
	putMPInt(&blob, big.NewInt(int64(pub.E)).Bytes())
	putMPInt(&blob, pub.N.Bytes())
	return blob.Bytes(), nil
}

// putString writes a length-prefixed byte string
func putString(buf *bytes.Buffer, b []byte) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(b)))
	buf.Write(length[:])
	buf.Write(b)
}

// putMPInt writes a length-prefixed non-negative integer given in its
// minimal big-endian form, padding with a zero byte when the MSB is set
func putMPInt(buf *bytes.Buffer, b []byte) {
	if len(b) > 0 && b[0]&0x80 != 0 {
		var length [4]byte
		binary.BigEndian.PutUint32(length[:], uint32(len(b)+1))
		buf.Write(length[:])
		buf.WriteByte(0x00)
		buf.Write(b)
		return
	}
	putString(buf, b)
}

// Fingerprint derives the OpenSSH fingerprint representation of a key
// blob. MD5 fingerprints are lowercase hex octets separated by colons,
// SHA-256 fingerprints are base64 with the trailing padding removed,
// matching ssh-keygen -l -E <algo> output.
func Fingerprint(blob []byte, algo Digest) (string, error) {
	if blob == nil {
		panic("sshkey: blob == nil")
	}

	switch algo {
	case DigestMD5:
		digest := md5.Sum(blob)
		parts := make([]string, len(digest))
		for i, b := range digest {
			parts[i] = hex.EncodeToString([]byte{b})
		}
		return strings.Join(parts, ":"), nil
	case DigestSHA256:
		digest := sha256.Sum256(blob)
		fp := base64.StdEncoding.EncodeToString(digest[:])
		return strings.TrimRight(fp, "="), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDigest, algo)
	}
}

// Encode returns the base64 encoding of a key blob as it appears in an
// authorized_keys line, padding retained
func Encode(blob []byte) string {
	return base64.StdEncoding.EncodeToString(blob)
}
