// Package cms parses the Document Security Object (SOD) and CSCA Master
// List structures defined by ICAO Doc 9303 Part 10/12: an outer
// application-tagged wrapper around a CMS SignedData envelope, carrying an
// LDSSecurityObject (SOD) or a CscaMasterList as its signed content.
package cms

import (
	"encoding/asn1"
	"fmt"
	"time"

	"github.com/digitorus/pkcs7"

	pkderrors "github.com/icao-pkd/pkdmirror/errors"
)

// sodApplicationTag is the ICAO "EF.SOD" application tag (0x77) that wraps
// the CMS SignedData in both passport SOD files and, with the analogous
// 0x5F in some encodings, master list distributions. Callers strip it
// before handing bytes to the pkcs7 decoder, which expects a bare
// SignedData ContentInfo.
const sodApplicationTag = 0x77

// LDSSecurityObjectOID identifies the signed content of a Document Security
// Object.
var LDSSecurityObjectOID = asn1.ObjectIdentifier{2, 23, 136, 1, 1, 1}

// CscaMasterListOID identifies the signed content of a CSCA Master List.
var CscaMasterListOID = asn1.ObjectIdentifier{2, 23, 136, 1, 1, 2}

// DataGroupHash is one entry of an LDSSecurityObject's hash table.
type DataGroupHash struct {
	Number int
	Hash   []byte
}

// ldsSecurityObject mirrors the ICAO LDS1 SecurityObject ASN.1 structure:
//
//	LDSSecurityObject ::= SEQUENCE {
//	  version                INTEGER,
//	  hashAlgorithm          AlgorithmIdentifier,
//	  dataGroupHashValues    SEQUENCE OF DataGroupHash
//	}
type ldsSecurityObject struct {
	Version             int
	HashAlgorithm       pkix_AlgorithmIdentifier
	DataGroupHashValues []DataGroupHash
}

// pkix_AlgorithmIdentifier avoids importing crypto/x509/pkix solely for
// this one structure, matching the ASN.1 shape ICAO specifies.
type pkix_AlgorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.RawValue `asn1:"optional"`
}

// SOD is the decoded and signature-checked content of a Document Security
// Object.
type SOD struct {
	HashAlgorithmOID asn1.ObjectIdentifier
	DataGroupHashes  map[int][]byte
	SignedData       *pkcs7.PKCS7
	SignerCert       []byte // DER of the purported DSC, as embedded in the SignedData
	SignedAttrs      []byte // not set by ParseSOD; SigningTime reads the signer's attributes from SignedData
}

// ParseSOD strips the ICAO outer tag (if present) from raw, decodes the CMS
// SignedData envelope with pkcs7, and unmarshals its signed content as an
// LDSSecurityObject. It does not verify the signature; call Verify for that.
func ParseSOD(raw []byte) (*SOD, error) {
	envelope, err := unwrapOuterTag(raw)
	if err != nil {
		return nil, err
	}
	p7, err := pkcs7.Parse(envelope)
	if err != nil {
		return nil, pkderrors.New(pkderrors.SODSignatureInvalid, "CMS SignedData decode failed: %v", err)
	}
	var lso ldsSecurityObject
	if _, err := asn1.Unmarshal(p7.Content, &lso); err != nil {
		return nil, pkderrors.ParseErrorf("LDSSecurityObject decode failed: %v", err)
	}
	hashes := make(map[int][]byte, len(lso.DataGroupHashValues))
	for _, dg := range lso.DataGroupHashValues {
		hashes[dg.Number] = dg.Hash
	}
	var signerDER []byte
	if len(p7.Certificates) > 0 {
		signerDER = p7.Certificates[0].Raw
	}
	return &SOD{
		HashAlgorithmOID: lso.HashAlgorithm.Algorithm,
		DataGroupHashes:  hashes,
		SignedData:       p7,
		SignerCert:       signerDER,
	}, nil
}

// Verify checks the CMS signature over the SOD's signed attributes using
// the signer certificate embedded in the SignedData. A failure is returned
// as a PKDError of kind SODSignatureInvalid.
func (s *SOD) Verify() error {
	if err := s.SignedData.Verify(); err != nil {
		return pkderrors.New(pkderrors.SODSignatureInvalid, "SOD signature verification failed: %v", err)
	}
	return nil
}

// SigningTime returns the CMS signingTime authenticated attribute, if the
// signer included one. Passive Authentication uses this, not wall-clock
// time, to judge point-in-time certificate validity.
func (s *SOD) SigningTime() (time.Time, bool) {
	for _, signer := range s.SignedData.Signers {
		for _, attr := range signer.AuthenticatedAttributes {
			if attr.Type.Equal(oidSigningTime) {
				var t time.Time
				if _, err := asn1.Unmarshal(attr.Value.Bytes, &t); err == nil {
					return t.UTC(), true
				}
			}
		}
	}
	return time.Time{}, false
}

var oidSigningTime = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 5}

func unwrapOuterTag(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, pkderrors.ParseErrorf("empty SOD input")
	}
	if raw[0] != sodApplicationTag {
		// Already a bare SignedData ContentInfo (some distributions omit
		// the outer tag); hand it through unchanged.
		return raw, nil
	}
	var inner asn1.RawValue
	if _, err := asn1.UnmarshalWithParams(raw, &inner, fmt.Sprintf("application,tag:%d", sodApplicationTag&0x1f)); err != nil {
		return nil, pkderrors.ParseErrorf("SOD outer tag unwrap failed: %v", err)
	}
	return inner.Bytes, nil
}
