// Package whitelist builds and reads the signed document asserting which certificate
// may sign the revisions of a repository, and until when.
//
// The document is line oriented:
//
//	20240301103000
//	E20240331103000
//	Nacme.example.org
//	AB:CD:...:EF
//	--
//	<sha1 hex digest of the lines above>
//	<signature of the digest>
package whitelist

import (
	"bytes"
	"crypto/sha1" // #nosec G505
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"strings"
	"time"

	"github.com/nc6/cvmfs/pkg/errors"
)

const (
	timeLayout = "20060102150405"
	separator  = "--"

	// DefaultValidity of a whitelist
	DefaultValidity = 30 * 24 * time.Hour
)

// ErrInvalid is returned when parsing a malformed or tampered document
var ErrInvalid = errors.New("invalid whitelist")

// Document is a whitelist
type Document struct {
	Issued      time.Time
	Expires     time.Time
	Name        string
	Fingerprint string
	Signature   []byte
}

// New unsigned whitelist, issued now and valid for validity
func New(name, fingerprint string, now time.Time, validity time.Duration) Document {
	issued := now.UTC().Truncate(time.Second)
	return Document{
		Issued:      issued,
		Expires:     issued.Add(validity),
		Name:        name,
		Fingerprint: fingerprint,
	}
}

// Body is the signed part of the document
func (d Document) Body() []byte {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, d.Issued.UTC().Format(timeLayout))
	fmt.Fprintln(&buf, "E"+d.Expires.UTC().Format(timeLayout))
	fmt.Fprintln(&buf, "N"+d.Name)
	fmt.Fprintln(&buf, d.Fingerprint)
	return buf.Bytes()
}

// Digest is the hex encoded SHA-1 of the body, as signed
func (d Document) Digest() []byte {
	sum := sha1.Sum(d.Body()) // #nosec G401
	return []byte(hex.EncodeToString(sum[:]))
}

// Bytes renders the document
func (d Document) Bytes() []byte {
	var buf bytes.Buffer
	buf.Write(d.Body())
	buf.WriteString(separator + "\n")
	buf.Write(d.Digest())
	buf.WriteByte('\n')
	buf.Write(d.Signature)
	return buf.Bytes()
}

// Expired tells if the whitelist is no longer valid at now
func (d Document) Expired(now time.Time) bool {
	return !now.Before(d.Expires)
}

// Parse a whitelist. The digest must match the body, the signature is not verified.
func Parse(b []byte) (Document, error) {
	parts := bytes.SplitN(b, []byte("\n"+separator+"\n"), 2)
	if len(parts) != 2 {
		return Document{}, ErrInvalid.Wrapf("missing separator")
	}
	lines := strings.Split(string(parts[0]), "\n")
	if len(lines) != 4 {
		return Document{}, ErrInvalid.Wrapf("expected 4 lines before the separator, got %d", len(lines))
	}

	var (
		d   Document
		err error
	)
	if d.Issued, err = time.Parse(timeLayout, lines[0]); err != nil {
		return Document{}, ErrInvalid.Wrapf("issue date: %v", err)
	}
	if !strings.HasPrefix(lines[1], "E") {
		return Document{}, ErrInvalid.Wrapf("missing expiry date")
	}
	if d.Expires, err = time.Parse(timeLayout, lines[1][1:]); err != nil {
		return Document{}, ErrInvalid.Wrapf("expiry date: %v", err)
	}
	if !strings.HasPrefix(lines[2], "N") || len(lines[2]) == 1 {
		return Document{}, ErrInvalid.Wrapf("missing repository name")
	}
	d.Name = lines[2][1:]
	d.Fingerprint = lines[3]

	rest := bytes.SplitN(parts[1], []byte("\n"), 2)
	if !bytes.Equal(rest[0], d.Digest()) {
		return Document{}, ErrInvalid.Wrapf("digest mismatch")
	}
	if len(rest) == 2 {
		d.Signature = rest[1]
	}
	return d, nil
}

// Fingerprint computes the SHA-1 fingerprint of a PEM certificate, as colon separated upper case hex
func Fingerprint(certPEM []byte) (string, error) {
	block, _ := pem.Decode(certPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		return "", fmt.Errorf("no PEM certificate found")
	}
	sum := sha1.Sum(block.Bytes) // #nosec G401
	hexa := strings.ToUpper(hex.EncodeToString(sum[:]))
	pairs := make([]string, 0, len(sum))
	for i := 0; i < len(hexa); i += 2 {
		pairs = append(pairs, hexa[i:i+2])
	}
	return strings.Join(pairs, ":"), nil
}
