package cms

import "testing"

func TestParseMasterListMalformed(t *testing.T) {
	if _, err := ParseMasterList([]byte("not a master list")); err == nil {
		t.Errorf("ParseMasterList on garbage input should fail")
	}
}

func TestParseMasterListEmpty(t *testing.T) {
	if _, err := ParseMasterList(nil); err == nil {
		t.Errorf("ParseMasterList on empty input should fail")
	}
}
