// Package ldif implements a streaming reader for the RFC 2849 LDIF entries
// that ICAO PKD bulk distributions ship: one LDAP entry per certificate or
// CRL, attribute values base64-encoded, entries separated by a blank line.
package ldif

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	pkderrors "github.com/icao-pkd/pkdmirror/errors"
)

// Entry is one parsed LDIF record: its DN and its attribute values, decoded
// from base64 where the LDIF used the "::" form.
type Entry struct {
	DN         string
	Attributes map[string][][]byte
}

// ObjectClasses returns the entry's objectClass attribute values as
// strings, lower-cased for case-insensitive matching against the class
// names in Reader's callers.
func (e *Entry) ObjectClasses() []string {
	var out []string
	for _, v := range e.Attributes["objectclass"] {
		out = append(out, strings.ToLower(string(v)))
	}
	return out
}

// First returns the first value of a named attribute, or nil.
func (e *Entry) First(attr string) []byte {
	vals := e.Attributes[strings.ToLower(attr)]
	if len(vals) == 0 {
		return nil
	}
	return vals[0]
}

// Reader streams Entry values out of an io.Reader holding an LDIF document.
// It is built for the multi-gigabyte master-list-of-master-lists files PKD
// distributes, so it never buffers the whole input: each call to Next
// parses exactly one entry.
type Reader struct {
	scanner *bufio.Scanner
	pending string
	done    bool
}

// NewReader wraps r for entry-at-a-time LDIF parsing. The scanner buffer is
// sized generously because individual attribute lines (a DER certificate,
// base64-encoded) can run past bufio.Scanner's 64KiB default.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Reader{scanner: scanner}
}

// Next returns the next Entry, or io.EOF when the stream is exhausted.
func (rd *Reader) Next() (*Entry, error) {
	if rd.done {
		return nil, io.EOF
	}
	var lines []string
	if rd.pending != "" {
		lines = append(lines, rd.pending)
		rd.pending = ""
	}
	for rd.scanner.Scan() {
		line := rd.scanner.Text()
		if line == "" {
			if len(lines) == 0 {
				continue // blank separator lines between entries
			}
			return parseEntry(lines)
		}
		if strings.HasPrefix(line, " ") && len(lines) > 0 {
			// RFC 2849 line-folding continuation.
			lines[len(lines)-1] += line[1:]
			continue
		}
		lines = append(lines, line)
	}
	rd.done = true
	if err := rd.scanner.Err(); err != nil {
		return nil, pkderrors.ParseErrorf("LDIF scan failed: %v", err)
	}
	if len(lines) == 0 {
		return nil, io.EOF
	}
	return parseEntry(lines)
}

func parseEntry(lines []string) (*Entry, error) {
	entry := &Entry{Attributes: make(map[string][][]byte)}
	for i, line := range lines {
		if strings.HasPrefix(line, "#") {
			continue
		}
		attr, value, _, err := splitAttrLine(line)
		if err != nil {
			return nil, pkderrors.ParseErrorf("LDIF line %d: %v", i+1, err)
		}
		if entry.DN == "" && strings.EqualFold(attr, "dn") {
			entry.DN = string(value)
			continue
		}
		key := strings.ToLower(attr)
		entry.Attributes[key] = append(entry.Attributes[key], value)
	}
	if entry.DN == "" {
		return nil, pkderrors.ParseErrorf("LDIF entry missing dn: line")
	}
	return entry, nil
}

// splitAttrLine splits an "attr: value" or "attr:: base64value" LDIF line,
// decoding the base64 form.
func splitAttrLine(line string) (attr string, value []byte, isBase64 bool, err error) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", nil, false, fmt.Errorf("malformed attribute line %q", line)
	}
	attr = line[:idx]
	rest := line[idx+1:]
	if strings.HasPrefix(rest, ":") {
		rest = strings.TrimSpace(rest[1:])
		decoded, derr := base64.StdEncoding.DecodeString(rest)
		if derr != nil {
			return "", nil, false, fmt.Errorf("base64 decode of %q failed: %w", attr, derr)
		}
		return attr, decoded, true, nil
	}
	return attr, []byte(strings.TrimSpace(rest)), false, nil
}
