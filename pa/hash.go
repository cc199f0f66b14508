package pa

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/asn1"
	"hash"

	pkderrors "github.com/icao-pkd/pkdmirror/errors"
)

// Hash algorithm OIDs named in ICAO Doc 9303 Part 10's LDSSecurityObject.
// SHA-1 is retained only because legacy SODs still carry it; it's never
// chosen for anything this module signs or generates itself.
var (
	oidSHA1   = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}
	oidSHA256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	oidSHA384 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}
	oidSHA512 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}
)

// newHasher returns the hash.Hash named by a digestAlgorithm OID, or an
// error if the SOD declares something this module doesn't recognize.
func newHasher(oid asn1.ObjectIdentifier) (hash.Hash, error) {
	switch {
	case oid.Equal(oidSHA1):
		return sha1.New(), nil
	case oid.Equal(oidSHA256):
		return sha256.New(), nil
	case oid.Equal(oidSHA384):
		return sha512.New384(), nil
	case oid.Equal(oidSHA512):
		return sha512.New(), nil
	default:
		return nil, pkderrors.ParseErrorf("unsupported data group hash algorithm OID %s", oid)
	}
}
