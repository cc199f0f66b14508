// Package certdecode implements the Certificate Codec: it accepts an
// opaque DER/PEM byte sequence and emits a structured certificate
// Descriptor, or a typed parse error. It never panics on malformed input:
// every caller in this module feeds it untrusted bytes from national PKD
// distributions, some of which carry non-conformant extensions that the
// standard library's strict parser rejects.
package certdecode

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"strings"
	"time"

	zx509 "github.com/zmap/zcrypto/x509"
	zpkix "github.com/zmap/zcrypto/x509/pkix"

	"github.com/icao-pkd/pkdmirror/core"
	pkderrors "github.com/icao-pkd/pkdmirror/errors"
)

// Extensions captures the extension set the Validation Engine and PA
// Engine need surfaced from a parsed certificate.
type Extensions struct {
	BasicConstraintsValid bool
	IsCA                  bool
	PathLen               int
	KeyUsage              x509.KeyUsage
	ExtKeyUsageOIDs       []string
	SAN                   []string
	CRLDistributionPoints []string
	AuthorityKeyID        string
	SubjectKeyID          string
	PolicyOIDs            []string
	UnknownCriticalOIDs   []string
}

// Descriptor is the structured output of decoding one certificate.
type Descriptor struct {
	DER                []byte
	Fingerprint        string
	SubjectDN          string
	IssuerDN           string
	SerialHex          string
	NotBefore          time.Time
	NotAfter           time.Time
	SignatureAlgorithm string
	KeyAlgorithm       core.KeyAlgorithm
	KeySizeBits        int
	IsSelfSigned       bool
	Extensions         Extensions
	ParsedBy           string // "stdlib" or "zcrypto": which parser accepted the DER
	cert               *x509.Certificate
}

// Certificate returns the underlying parsed *x509.Certificate, for callers
// (the Validation Engine) that need to run crypto operations against it.
func (d *Descriptor) Certificate() *x509.Certificate { return d.cert }

// DecodePEMOrDER accepts either a PEM block or raw DER bytes and returns
// the decoded certificate Descriptor.
func DecodePEMOrDER(raw []byte) (*Descriptor, error) {
	der := raw
	if block, _ := pem.Decode(raw); block != nil {
		der = block.Bytes
	}
	return DecodeDER(der)
}

// DecodeDER decodes canonical DER bytes into a Descriptor. It first tries
// the standard library's strict parser; several national CSCAs in the wild
// carry extensions stdlib rejects, so on failure it retries with zcrypto's
// more permissive parser, which is purpose-built to tolerate exactly this
// class of non-conformant input.
func DecodeDER(der []byte) (*Descriptor, error) {
	cert, err := x509.ParseCertificate(der)
	parsedBy := "stdlib"
	if err != nil {
		zcert, zerr := zx509.ParseCertificate(der)
		if zerr != nil {
			return nil, pkderrors.ParseErrorf("certificate parse failed: stdlib=%v zcrypto=%v", err, zerr)
		}
		cert = certificateFromZCrypto(zcert)
		parsedBy = "zcrypto"
	}

	fp := sha256.Sum256(cert.Raw)
	desc := &Descriptor{
		DER:                cert.Raw,
		Fingerprint:        hex.EncodeToString(fp[:]),
		SubjectDN:          oneLineName(cert.Subject),
		IssuerDN:           oneLineName(cert.Issuer),
		SerialHex:          serialToColonHex(cert),
		NotBefore:          cert.NotBefore.UTC(),
		NotAfter:           cert.NotAfter.UTC(),
		SignatureAlgorithm: cert.SignatureAlgorithm.String(),
		ParsedBy:           parsedBy,
		cert:               cert,
	}
	desc.KeyAlgorithm, desc.KeySizeBits = keyAlgorithmAndSize(cert)
	desc.IsSelfSigned = core.SameDN(desc.SubjectDN, desc.IssuerDN)
	desc.Extensions = extractExtensions(cert)
	return desc, nil
}

// certificateFromZCrypto builds a standard-library *x509.Certificate from a
// certificate zcrypto's tolerant parser accepted but stdlib's own strict
// parser rejected. zcrypto's x509.Certificate is a field-for-field fork of
// the standard library's, built for exactly this recovery case, so the raw
// TBS bytes, signature, and key material it already extracted carry over
// directly instead of re-feeding the same rejected DER back into
// x509.ParseCertificate, which would only fail again.
func certificateFromZCrypto(zcert *zx509.Certificate) *x509.Certificate {
	return &x509.Certificate{
		Raw:                     zcert.Raw,
		RawTBSCertificate:       zcert.RawTBSCertificate,
		RawSubjectPublicKeyInfo: zcert.RawSubjectPublicKeyInfo,
		RawSubject:              zcert.RawSubject,
		RawIssuer:               zcert.RawIssuer,
		Signature:               zcert.Signature,
		SignatureAlgorithm:      x509.SignatureAlgorithm(zcert.SignatureAlgorithm),
		PublicKeyAlgorithm:      x509.PublicKeyAlgorithm(zcert.PublicKeyAlgorithm),
		PublicKey:               zcert.PublicKey,
		Version:                 zcert.Version,
		SerialNumber:            zcert.SerialNumber,
		Issuer:                  convertZName(zcert.Issuer),
		Subject:                 convertZName(zcert.Subject),
		NotBefore:               zcert.NotBefore,
		NotAfter:                zcert.NotAfter,
		KeyUsage:                x509.KeyUsage(zcert.KeyUsage),
		Extensions:              convertZExtensions(zcert.Extensions),
		UnknownExtKeyUsage:      zcert.UnknownExtKeyUsage,
		BasicConstraintsValid:   zcert.BasicConstraintsValid,
		IsCA:                    zcert.IsCA,
		MaxPathLen:              zcert.MaxPathLen,
		MaxPathLenZero:          zcert.MaxPathLenZero,
		SubjectKeyId:            zcert.SubjectKeyId,
		AuthorityKeyId:          zcert.AuthorityKeyId,
		DNSNames:                zcert.DNSNames,
		EmailAddresses:          zcert.EmailAddresses,
		CRLDistributionPoints:   zcert.CRLDistributionPoints,
		PolicyIdentifiers:       zcert.PolicyIdentifiers,
	}
}

// convertZName copies the RDN sequence from zcrypto's own pkix.Name into the
// standard library's. This package only ever reads .Names, via oneLineName,
// so the convenience fields (CommonName, Organization, ...) don't need it.
func convertZName(n zpkix.Name) pkix.Name {
	names := make([]pkix.AttributeTypeAndValue, len(n.Names))
	for i, atv := range n.Names {
		names[i] = pkix.AttributeTypeAndValue{Type: atv.Type, Value: atv.Value}
	}
	return pkix.Name{Names: names}
}

func convertZExtensions(exts []zpkix.Extension) []pkix.Extension {
	out := make([]pkix.Extension, len(exts))
	for i, e := range exts {
		out[i] = pkix.Extension{Id: e.Id, Critical: e.Critical, Value: e.Value}
	}
	return out
}

// oneLineName renders a pkix.Name the way OpenSSL's X509_NAME_oneline does:
// a single "/"-delimited string, most-significant RDN first.
func oneLineName(name pkix.Name) string {
	var parts []string
	for _, rdn := range name.Names {
		key := attributeShortName(rdn.Type.String())
		if key == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", key, rdn.Value))
	}
	if len(parts) == 0 {
		return name.String()
	}
	return "/" + strings.Join(parts, "/")
}

var oidShortNames = map[string]string{
	"2.5.4.6":  "C",
	"2.5.4.10": "O",
	"2.5.4.11": "OU",
	"2.5.4.3":  "CN",
	"2.5.4.8":  "ST",
	"2.5.4.7":  "L",
	"2.5.4.5":  "SERIALNUMBER",
}

func attributeShortName(oid string) string {
	if name, ok := oidShortNames[oid]; ok {
		return name
	}
	return oid
}

// serialToColonHex renders the certificate's serial number as uppercase,
// colon-separated hex of its unsigned magnitude.
func serialToColonHex(cert *x509.Certificate) string {
	b := cert.SerialNumber.Bytes()
	if len(b) == 0 {
		return "00"
	}
	hexStr := hex.EncodeToString(b)
	hexStr = strings.ToUpper(hexStr)
	var out strings.Builder
	for i := 0; i < len(hexStr); i += 2 {
		if i > 0 {
			out.WriteByte(':')
		}
		out.WriteString(hexStr[i : i+2])
	}
	return out.String()
}

func keyAlgorithmAndSize(cert *x509.Certificate) (core.KeyAlgorithm, int) {
	switch pub := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		if cert.SignatureAlgorithm == x509.SHA256WithRSAPSS ||
			cert.SignatureAlgorithm == x509.SHA384WithRSAPSS ||
			cert.SignatureAlgorithm == x509.SHA512WithRSAPSS {
			return core.KeyRSAPSS, pub.N.BitLen()
		}
		return core.KeyRSA, pub.N.BitLen()
	case *ecdsa.PublicKey:
		return core.KeyECDSA, pub.Curve.Params().BitSize
	default:
		return core.KeyOther, 0
	}
}

func extractExtensions(cert *x509.Certificate) Extensions {
	ext := Extensions{
		BasicConstraintsValid: cert.BasicConstraintsValid,
		IsCA:                  cert.IsCA,
		PathLen:               cert.MaxPathLen,
		KeyUsage:              cert.KeyUsage,
		SAN:                   append(append([]string{}, cert.DNSNames...), cert.EmailAddresses...),
		CRLDistributionPoints: cert.CRLDistributionPoints,
	}
	for _, eku := range cert.UnknownExtKeyUsage {
		ext.ExtKeyUsageOIDs = append(ext.ExtKeyUsageOIDs, eku.String())
	}
	if len(cert.SubjectKeyId) > 0 {
		ext.SubjectKeyID = hex.EncodeToString(cert.SubjectKeyId)
	}
	if len(cert.AuthorityKeyId) > 0 {
		ext.AuthorityKeyID = hex.EncodeToString(cert.AuthorityKeyId)
	}
	for _, p := range cert.PolicyIdentifiers {
		ext.PolicyOIDs = append(ext.PolicyOIDs, p.String())
	}
	knownCritical := map[string]bool{
		"2.5.29.19": true, // basicConstraints
		"2.5.29.15": true, // keyUsage
		"2.5.29.37": true, // extKeyUsage
		"2.5.29.17": true, // subjectAltName
		"2.5.29.31": true, // cRLDistributionPoints
		"2.5.29.35": true, // authorityKeyIdentifier
		"2.5.29.14": true, // subjectKeyIdentifier
		"2.5.29.32": true, // certificatePolicies
	}
	for _, e := range cert.Extensions {
		if e.Critical && !knownCritical[e.Id.String()] {
			ext.UnknownCriticalOIDs = append(ext.UnknownCriticalOIDs, e.Id.String())
		}
	}
	return ext
}
