// Package ldapmirror projects the Trust Store into an LDAP directory. The
// Trust Store database is the source of truth; everything in this package
// is a write-through or read-through view of it, never the other way
// around.
package ldapmirror

import (
	"context"
	"fmt"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/icao-pkd/pkdmirror/core"
	pkderrors "github.com/icao-pkd/pkdmirror/errors"
	"github.com/icao-pkd/pkdmirror/logging"
)

// searchTimeout bounds every directory operation this package issues. The
// mirror is an internal projection behind the Trust Store, not a
// public-facing directory, so a slow or wedged LDAP server should fail a
// reconciliation batch fast rather than stall it indefinitely.
const searchTimeout = 5 * time.Second

// Config holds the connection parameters for the mirrored directory.
type Config struct {
	URL      string
	BindDN   string
	Password string
	BaseDN   string
	PoolSize int
}

// Mirror is a bounded-pool LDAP client. Connections are opened lazily and
// recycled across calls; a connection that errors is dropped rather than
// returned to the pool.
type Mirror struct {
	cfg  Config
	pool chan *ldap.Conn
	log  logging.Logger
}

// New builds a Mirror with an empty pool; connections are established on
// first use via acquire.
func New(cfg Config, log logging.Logger) *Mirror {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}
	return &Mirror{cfg: cfg, pool: make(chan *ldap.Conn, cfg.PoolSize), log: log}
}

func (m *Mirror) acquire(ctx context.Context) (*ldap.Conn, error) {
	select {
	case conn := <-m.pool:
		return conn, nil
	default:
	}
	conn, err := ldap.DialURL(m.cfg.URL)
	if err != nil {
		return nil, pkderrors.LDAPErrorf("dialing %s: %v", m.cfg.URL, err)
	}
	conn.SetTimeout(searchTimeout)
	if err := conn.Bind(m.cfg.BindDN, m.cfg.Password); err != nil {
		conn.Close()
		return nil, pkderrors.LDAPErrorf("binding as %s: %v", m.cfg.BindDN, err)
	}
	return conn, nil
}

func (m *Mirror) release(conn *ldap.Conn, broken bool) {
	if broken {
		conn.Close()
		return
	}
	select {
	case m.pool <- conn:
	default:
		conn.Close()
	}
}

// CertificateDN builds the directory DN for a mirrored certificate: the
// fingerprint disambiguates entries sharing a subject (key rollover,
// cross-signed CSCAs), and the country/type RDNs give the directory the
// hierarchical shape ICAO PKD consumers expect.
func CertificateDN(baseDN string, cert *core.Certificate) string {
	cn := fmt.Sprintf("cert-%s", cert.Fingerprint[:16])
	return fmt.Sprintf("cn=%s,ou=%s,c=%s,%s", cn, certOU(cert.Type), cert.Country, baseDN)
}

// CRLDN builds the directory DN for a mirrored CRL.
func CRLDN(baseDN string, crl *core.CRL) string {
	cn := fmt.Sprintf("crl-%s", crl.Fingerprint[:16])
	return fmt.Sprintf("cn=%s,ou=CRLs,c=%s,%s", cn, crl.Country, baseDN)
}

func certOU(t core.CertType) string {
	switch t {
	case core.CertTypeCSCA, core.CertTypeLC:
		return "CSCA"
	case core.CertTypeDSC, core.CertTypeDSCNC:
		return "DSC"
	case core.CertTypeMLSC:
		return "MLSC"
	default:
		return "Other"
	}
}

// AddCertificate projects a certificate row into the directory as a
// pkiCA/pkiUser-style entry. Callers are expected to have already checked
// that an entry for this DN doesn't exist; Add returns an LDAP error
// (mapped to LDAPError) on a duplicate.
func (m *Mirror) AddCertificate(ctx context.Context, cert *core.Certificate) error {
	conn, err := m.acquire(ctx)
	if err != nil {
		return err
	}
	dn := CertificateDN(m.cfg.BaseDN, cert)
	req := ldap.NewAddRequest(dn, nil)
	req.Attribute("objectClass", []string{"top", "pkiCA", "pkdMirrorCertificate"})
	req.Attribute("cn", []string{dn})
	req.Attribute("userCertificate;binary", []string{string(cert.DER)})
	req.Attribute("pkdCertType", []string{string(cert.Type)})
	req.Attribute("pkdFingerprint", []string{cert.Fingerprint})
	if err := conn.Add(req); err != nil {
		m.release(conn, true)
		return pkderrors.Wrap(pkderrors.LDAPError, err, "adding certificate entry %s: %v", dn, err)
	}
	m.release(conn, false)
	return nil
}

// AddCRL projects a CRL row into the directory as a certificateRevocationList entry.
func (m *Mirror) AddCRL(ctx context.Context, crl *core.CRL) error {
	conn, err := m.acquire(ctx)
	if err != nil {
		return err
	}
	dn := CRLDN(m.cfg.BaseDN, crl)
	req := ldap.NewAddRequest(dn, nil)
	req.Attribute("objectClass", []string{"top", "cRLDistributionPoint", "pkdMirrorCRL"})
	req.Attribute("cn", []string{dn})
	req.Attribute("certificateRevocationList;binary", []string{string(crl.DER)})
	req.Attribute("pkdFingerprint", []string{crl.Fingerprint})
	if err := conn.Add(req); err != nil {
		m.release(conn, true)
		return pkderrors.Wrap(pkderrors.LDAPError, err, "adding CRL entry %s: %v", dn, err)
	}
	m.release(conn, false)
	return nil
}

// Delete removes the entry at dn. Used by the Reconciliation Engine to
// drop directory entries for rows no longer present, or no longer valid,
// in the Trust Store.
func (m *Mirror) Delete(ctx context.Context, dn string) error {
	conn, err := m.acquire(ctx)
	if err != nil {
		return err
	}
	if err := conn.Del(ldap.NewDelRequest(dn, nil)); err != nil {
		m.release(conn, true)
		return pkderrors.LDAPErrorf("deleting entry %s: %v", dn, err)
	}
	m.release(conn, false)
	return nil
}

// ExistingFingerprints searches the directory base for every
// pkdFingerprint value currently present on an entry whose DN has ou as its
// second RDN (the layout CertificateDN and CRLDN build), for the
// Reconciliation Engine's diff against the Trust Store's StoredInLDAP rows.
func (m *Mirror) ExistingFingerprints(ctx context.Context, ou string) (map[string]string, error) {
	conn, err := m.acquire(ctx)
	if err != nil {
		return nil, err
	}
	broken := false
	defer func() { m.release(conn, broken) }()

	searchBase := m.cfg.BaseDN
	req := ldap.NewSearchRequest(
		searchBase, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
		0, int(searchTimeout.Seconds()), false,
		"(objectClass=*)",
		[]string{"pkdFingerprint", "dn"},
		nil,
	)
	result, err := conn.Search(req)
	if err != nil {
		broken = true
		return nil, pkderrors.LDAPErrorf("searching %s: %v", searchBase, err)
	}
	out := make(map[string]string, len(result.Entries))
	for _, entry := range result.Entries {
		dn, perr := ldap.ParseDN(entry.DN)
		if perr != nil || len(dn.RDNs) < 2 || len(dn.RDNs[1].Attributes) == 0 ||
			dn.RDNs[1].Attributes[0].Type != "ou" || dn.RDNs[1].Attributes[0].Value != ou {
			continue
		}
		fp := entry.GetAttributeValue("pkdFingerprint")
		if fp != "" {
			out[fp] = entry.DN
		}
	}
	return out, nil
}
