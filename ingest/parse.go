package ingest

import (
	"io"
	"strings"

	"github.com/icao-pkd/pkdmirror/certdecode"
	"github.com/icao-pkd/pkdmirror/cms"
	"github.com/icao-pkd/pkdmirror/core"
	pkderrors "github.com/icao-pkd/pkdmirror/errors"
	"github.com/icao-pkd/pkdmirror/ldif"
)

// artifactKind distinguishes a parsed certificate row from a parsed CRL
// row, the two shapes this pipeline persists.
type artifactKind int

const (
	artifactCertificate artifactKind = iota
	artifactCRL
)

// parsedArtifact is one certificate or CRL extracted from an upload, still
// unvalidated and unpersisted.
type parsedArtifact struct {
	Kind          artifactKind
	CertType      core.CertType // meaningful only when Kind == artifactCertificate
	DER           []byte
	SourceContext map[string]string
}

// parseUpload dispatches on format and returns every artifact the upload
// contains. It never partially fails the whole upload on one bad entry:
// malformed individual entries are returned in the errs slice as
// PARSE-category processing errors, while well-formed entries still come
// back in artifacts.
func parseUpload(format core.UploadFormat, raw []byte) (artifacts []parsedArtifact, errs []error) {
	switch format {
	case core.FormatLDIF:
		return parseLDIFUpload(raw)
	case core.FormatML:
		return parseMasterListUpload(raw)
	case core.FormatPEM, core.FormatDER, core.FormatP7B:
		return parseSingleCertificateUpload(raw)
	case core.FormatCRL:
		return []parsedArtifact{{Kind: artifactCRL, DER: raw}}, nil
	default:
		return nil, []error{pkderrors.ParseErrorf("unsupported upload format %q", format)}
	}
}

func parseLDIFUpload(raw []byte) ([]parsedArtifact, []error) {
	reader := ldif.NewReader(strings.NewReader(string(raw)))
	var artifacts []parsedArtifact
	var errs []error
	for {
		entry, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			errs = append(errs, err)
			break
		}
		if certDER := entry.First("userCertificate;binary"); certDER != nil {
			artifacts = append(artifacts, parsedArtifact{
				Kind:          artifactCertificate,
				CertType:      classifyFromDN(entry.DN),
				DER:           certDER,
				SourceContext: map[string]string{"ldifDn": entry.DN},
			})
			continue
		}
		if crlDER := entry.First("certificateRevocationList;binary"); crlDER != nil {
			artifacts = append(artifacts, parsedArtifact{
				Kind:          artifactCRL,
				DER:           crlDER,
				SourceContext: map[string]string{"ldifDn": entry.DN},
			})
			continue
		}
		// Container entries (c=XX, o=csca, ...) carry no certificate
		// material; they're structural and not recorded as artifacts or
		// errors.
	}
	return artifacts, errs
}

// classifyFromDN reads the DN's "o=" RDN to classify the certificate
// container (o ∈ {csca, dsc, crl}, plus the deprecated nc-data branch for
// DSC_NC). Final CSCA-vs-LC classification still depends on
// is_self_signed, decided later by certdecode.
func classifyFromDN(dn string) core.CertType {
	lower := strings.ToLower(dn)
	switch {
	case strings.Contains(lower, "o=csca"):
		return core.CertTypeCSCA
	case strings.Contains(lower, "o=dsc_nc"), strings.Contains(lower, "nc-data"):
		return core.CertTypeDSCNC
	case strings.Contains(lower, "o=dsc"):
		return core.CertTypeDSC
	default:
		return core.CertTypeDSC
	}
}

func parseMasterListUpload(raw []byte) ([]parsedArtifact, []error) {
	ml, err := cms.ParseMasterList(raw)
	if err != nil {
		return nil, []error{err}
	}
	if err := ml.Verify(); err != nil {
		return nil, []error{err}
	}
	var artifacts []parsedArtifact
	var errs []error

	var mlscFingerprint string
	if len(ml.SignerCert) > 0 {
		if desc, err := certdecode.DecodeDER(ml.SignerCert); err == nil {
			mlscFingerprint = desc.Fingerprint
			artifacts = append(artifacts, parsedArtifact{
				Kind:     artifactCertificate,
				CertType: core.CertTypeMLSC,
				DER:      ml.SignerCert,
			})
		} else {
			errs = append(errs, pkderrors.ParseErrorf("decoding master list signer certificate: %v", err))
		}
	}

	for _, der := range ml.CSCADER {
		artifacts = append(artifacts, parsedArtifact{
			Kind:     artifactCertificate,
			CertType: core.CertTypeCSCA,
			DER:      der,
			SourceContext: map[string]string{
				"mlscFingerprint": mlscFingerprint,
			},
		})
	}
	if len(artifacts) == 0 {
		errs = append(errs, pkderrors.ParseErrorf("master list contained no CSCA certificates"))
	}
	return artifacts, errs
}

func parseSingleCertificateUpload(raw []byte) ([]parsedArtifact, []error) {
	return []parsedArtifact{{Kind: artifactCertificate, CertType: core.CertTypeDSC, DER: raw}}, nil
}
