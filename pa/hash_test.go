package pa

import (
	"encoding/asn1"
	"testing"
)

func TestNewHasherKnownOIDs(t *testing.T) {
	cases := []struct {
		name       string
		oid        asn1.ObjectIdentifier
		sumLenBits int
	}{
		{"sha1", oidSHA1, 160},
		{"sha256", oidSHA256, 256},
		{"sha384", oidSHA384, 384},
		{"sha512", oidSHA512, 512},
	}
	for _, c := range cases {
		h, err := newHasher(c.oid)
		if err != nil {
			t.Fatalf("newHasher(%s) failed: %v", c.name, err)
		}
		h.Write([]byte("icao pkd mirror"))
		if got := h.Size() * 8; got != c.sumLenBits {
			t.Errorf("newHasher(%s).Size()*8 = %d, want %d", c.name, got, c.sumLenBits)
		}
	}
}

func TestNewHasherUnknownOID(t *testing.T) {
	_, err := newHasher(asn1.ObjectIdentifier{1, 2, 3, 4, 5})
	if err == nil {
		t.Errorf("newHasher on an unrecognized OID should fail")
	}
}

func TestCompareDataGroupsEmpty(t *testing.T) {
	if got := compareDataGroups(nil, nil); got != nil {
		t.Errorf("compareDataGroups with no requested data groups should return nil, got %v", got)
	}
}
