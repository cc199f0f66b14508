package cms

import (
	"encoding/asn1"

	"github.com/digitorus/pkcs7"

	pkderrors "github.com/icao-pkd/pkdmirror/errors"
)

// cscaMasterList mirrors the ICAO CscaMasterList ASN.1 structure:
//
//	CscaMasterList ::= SEQUENCE {
//	  version     INTEGER,
//	  certList    SET OF Certificate
//	}
type cscaMasterList struct {
	Version  int
	CertList []asn1.RawValue `asn1:"set"`
}

// MasterList is the decoded content of a CSCA Master List: the MLSC that
// signed it, plus the raw DER of every CSCA certificate it carries.
type MasterList struct {
	SignerCert []byte // DER of the MLSC, from the SignerInfo cert stack
	CSCADER    [][]byte
	SignedData *pkcs7.PKCS7
}

// ParseMasterList strips the ICAO outer tag (if present), decodes the CMS
// SignedData envelope, and unmarshals its eContent as a CscaMasterList,
// returning the raw DER of each embedded CSCA certificate for the caller
// to classify and persist individually.
func ParseMasterList(raw []byte) (*MasterList, error) {
	envelope, err := unwrapOuterTag(raw)
	if err != nil {
		return nil, err
	}
	p7, err := pkcs7.Parse(envelope)
	if err != nil {
		return nil, pkderrors.New(pkderrors.SODSignatureInvalid, "master list CMS SignedData decode failed: %v", err)
	}
	var ml cscaMasterList
	if _, err := asn1.Unmarshal(p7.Content, &ml); err != nil {
		return nil, pkderrors.ParseErrorf("CscaMasterList decode failed: %v", err)
	}
	out := &MasterList{SignedData: p7}
	if len(p7.Certificates) > 0 {
		out.SignerCert = p7.Certificates[0].Raw
	}
	for _, raw := range ml.CertList {
		out.CSCADER = append(out.CSCADER, raw.FullBytes)
	}
	return out, nil
}

// Verify checks the CMS signature over the master list's signed content
// using the embedded MLSC.
func (m *MasterList) Verify() error {
	if err := m.SignedData.Verify(); err != nil {
		return pkderrors.New(pkderrors.SODSignatureInvalid, "master list signature verification failed: %v", err)
	}
	return nil
}
