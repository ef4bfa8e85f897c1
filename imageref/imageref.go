package imageref

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

const defaultMIME = "image/png"

// Ref is an image reference in one of two forms: a remote URL, or image
// bytes embedded inline. Remote URLs returned by generation APIs are
// short-lived, so pipelines pin them into the embedded form before the
// response is sent.
type Ref struct {
	URL  string
	Data []byte
	MIME string
}

// FromURL returns a remote ref.
func FromURL(u string) Ref {
	return Ref{URL: u}
}

// FromBytes returns an embedded ref.
func FromBytes(data []byte, mime string) Ref {
	if mime == "" {
		mime = defaultMIME
	}
	return Ref{Data: data, MIME: mime}
}

// Parse interprets s as either a data URL or a remote reference.
// Malformed data URLs are kept as-is in the remote form so that the
// caller can still hand them back to the client unchanged.
func Parse(s string) Ref {
	if strings.HasPrefix(s, "data:") {
		if ref, err := parseDataURL(s); err == nil {
			return ref
		}
	}
	return Ref{URL: s}
}

func parseDataURL(s string) (Ref, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return Ref{}, fmt.Errorf("malformed data URL")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return Ref{}, fmt.Errorf("unsupported data URL encoding")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Ref{}, fmt.Errorf("decoding data URL payload: %w", err)
	}
	return FromBytes(data, strings.TrimSuffix(meta, ";base64")), nil
}

// IsZero reports whether the ref holds neither a URL nor bytes.
func (r Ref) IsZero() bool {
	return r.URL == "" && len(r.Data) == 0
}

// IsRemote reports whether the ref still needs a network fetch.
func (r Ref) IsRemote() bool {
	return r.URL != "" && len(r.Data) == 0
}

// DataURL renders the ref as a string: embedded refs become data URLs,
// remote refs are returned as-is.
func (r Ref) DataURL() string {
	if len(r.Data) == 0 {
		return r.URL
	}
	return fmt.Sprintf("data:%s;base64,%s", r.MIME, base64.StdEncoding.EncodeToString(r.Data))
}

// Placeholder builds a remote placeholder image with the product name
// rendered as visible text. Placeholders are not expected to expire, so
// they are the one ref the pipelines return without pinning.
func Placeholder(name string, width, height int) Ref {
	return Ref{URL: fmt.Sprintf(
		"https://via.placeholder.com/%dx%d/4f46e5/ffffff?text=%s",
		width, height, url.QueryEscape(name),
	)}
}
