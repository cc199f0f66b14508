package store

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/icao-pkd/pkdmirror/core"
)

// CertificateCache is a read-through cache over the candidate-issuer and
// current-CRL lookups the Validation Engine runs once per certificate
// validated. A bulk Master-List ingestion re-validates the same handful of
// CSCAs against thousands of DSCs, so caching those two queries avoids a
// Trust Store round trip per DSC. Nothing is durably stored only here —
// every entry is a TTL'd copy of the same rows store already persists, so
// a cold cache or a Redis outage degrades to direct queries, never to a
// correctness gap.
type CertificateCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCertificateCache builds a CertificateCache backed by rdb. ttl <= 0
// falls back to a 5 minute default.
func NewCertificateCache(rdb *redis.Client, ttl time.Duration) *CertificateCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CertificateCache{rdb: rdb, ttl: ttl}
}

func candidateIssuersKey(country, issuerDN string) string {
	return fmt.Sprintf("%s:csca-candidates:%s", country, issuerDN)
}

func currentCRLKey(country, issuerDN string) string {
	return fmt.Sprintf("%s:%s:current-crl", country, issuerDN)
}

// CandidateIssuers returns a cached candidate-issuer set for issuerDN, or
// ok=false on a cache miss (including a disconnected Redis, which is
// treated as a miss rather than an error).
func (c *CertificateCache) CandidateIssuers(ctx context.Context, country, issuerDN string) ([]*core.Certificate, bool) {
	raw, err := c.rdb.Get(ctx, candidateIssuersKey(country, issuerDN)).Bytes()
	if err != nil {
		return nil, false
	}
	var certs []*core.Certificate
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&certs); err != nil {
		return nil, false
	}
	return certs, true
}

// SetCandidateIssuers populates the cache entry for issuerDN. Encoding or
// Redis failures are swallowed — caching is an optimization, never a
// correctness requirement.
func (c *CertificateCache) SetCandidateIssuers(ctx context.Context, country, issuerDN string, certs []*core.Certificate) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(certs); err != nil {
		return
	}
	_ = c.rdb.Set(ctx, candidateIssuersKey(country, issuerDN), buf.Bytes(), c.ttl).Err()
}

// CurrentCRL returns the cached current CRL for issuerDN, or ok=false on a
// cache miss.
func (c *CertificateCache) CurrentCRL(ctx context.Context, country, issuerDN string) (*core.CRL, bool) {
	raw, err := c.rdb.Get(ctx, currentCRLKey(country, issuerDN)).Bytes()
	if err != nil {
		return nil, false
	}
	var crl core.CRL
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&crl); err != nil {
		return nil, false
	}
	return &crl, true
}

// SetCurrentCRL populates the cache entry for issuerDN's current CRL.
func (c *CertificateCache) SetCurrentCRL(ctx context.Context, country, issuerDN string, crl *core.CRL) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(crl); err != nil {
		return
	}
	_ = c.rdb.Set(ctx, currentCRLKey(country, issuerDN), buf.Bytes(), c.ttl).Err()
}

// InvalidateIssuer drops both cache entries for issuerDN. It is reached
// through TrustStore.InvalidateCache, which the ingestion pipeline calls
// after inserting a row that could change what a future lookup for that
// issuer returns: a new CSCA, link certificate, or CRL for it.
func (c *CertificateCache) InvalidateIssuer(ctx context.Context, country, issuerDN string) {
	c.rdb.Del(ctx, candidateIssuersKey(country, issuerDN), currentCRLKey(country, issuerDN))
}
