package protocol

import (
	"encoding/base64"
	"errors"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrNotDataURI is returned when file content is not an RFC 2397 data URI.
var ErrNotDataURI = errors.New("content is not a data URI")

// sniffLimit bounds how much of a base64 payload is decoded for MIME
// detection. It is a multiple of 4 so the prefix decodes cleanly.
const sniffLimit = 4096

// DataURI is the parsed header of a data URI plus its still-encoded payload.
type DataURI struct {
	MediaType string
	Base64    bool
	payload   string
}

// ParseDataURI splits "data:[<mediatype>][;base64],<data>" into its parts.
func ParseDataURI(content string) (DataURI, error) {
	rest, ok := strings.CutPrefix(content, "data:")
	if !ok {
		return DataURI{}, ErrNotDataURI
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return DataURI{}, ErrNotDataURI
	}

	params := strings.Split(header, ";")
	uri := DataURI{MediaType: strings.ToLower(strings.TrimSpace(params[0])), payload: payload}
	if len(params) > 1 && strings.EqualFold(params[len(params)-1], "base64") {
		uri.Base64 = true
	}
	return uri, nil
}

// Size is the decoded payload length. For base64 it may overestimate by up to
// two bytes of padding.
func (d DataURI) Size() int {
	if d.Base64 {
		return base64.StdEncoding.DecodedLen(len(d.payload))
	}
	if decoded, err := url.PathUnescape(d.payload); err == nil {
		return len(decoded)
	}
	return len(d.payload)
}

// Sniff detects the payload MIME type from its leading bytes.
func (d DataURI) Sniff() string {
	head := d.payload
	if d.Base64 {
		if len(head) > sniffLimit {
			head = head[:sniffLimit]
		}
		data, err := base64.StdEncoding.DecodeString(head)
		if err != nil {
			return ""
		}
		return mimetype.Detect(data).String()
	}
	if decoded, err := url.PathUnescape(head); err == nil {
		head = decoded
	}
	return mimetype.Detect([]byte(head)).String()
}

// InspectFile resolves the MIME type and decoded size of file content. A
// declared type wins; otherwise the data URI header is used, then sniffing.
// Content that is not a data URI is treated as an opaque reference.
func InspectFile(content, declared string) (kind string, size int) {
	uri, err := ParseDataURI(content)
	if err != nil {
		return declared, len(content)
	}
	switch {
	case declared != "":
		kind = declared
	case uri.MediaType != "":
		kind = uri.MediaType
	default:
		kind = uri.Sniff()
	}
	return kind, uri.Size()
}
