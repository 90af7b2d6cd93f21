package webembed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Request asks the embed API for markup describing one link.
type Request struct {
	// URL is the link being embedded, usually an anchor's href.
	URL string `json:"url"`
	// SiteHost is the host of the page the embed will appear on.
	SiteHost string `json:"host,omitempty"`
}

// Embed is the oEmbed-style description returned by the embed API.
type Embed struct {
	Type            string    `json:"type,omitempty"`
	Version         string    `json:"version,omitempty"`
	Title           string    `json:"title,omitempty"`
	AuthorName      string    `json:"author_name,omitempty"`
	AuthorURL       string    `json:"author_url,omitempty"`
	ProviderName    string    `json:"provider_name,omitempty"`
	ProviderURL     string    `json:"provider_url,omitempty"`
	URL             string    `json:"url,omitempty"`
	HTML            string    `json:"html"`
	Width           Dimension `json:"width,omitempty"`
	Height          Dimension `json:"height,omitempty"`
	ThumbnailURL    string    `json:"thumbnail_url,omitempty"`
	ThumbnailWidth  Dimension `json:"thumbnail_width,omitempty"`
	ThumbnailHeight Dimension `json:"thumbnail_height,omitempty"`
}

// Dimension is a width or height that providers send either as a JSON
// number (480) or as a string ("100%", "480").
type Dimension string

// UnmarshalJSON accepts numbers, strings and null.
func (d *Dimension) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*d = ""
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("decode dimension: %w", err)
		}
		*d = Dimension(strings.TrimSpace(s))
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("decode dimension %s: %w", b, err)
		}
		*d = Dimension(n.String())
		return nil
	}
}

// MarshalJSON writes numeric dimensions as numbers and anything else as a string.
func (d Dimension) MarshalJSON() ([]byte, error) {
	if d == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseFloat(string(d), 64); err == nil {
		return []byte(d), nil
	}
	return json.Marshal(string(d))
}

// Int returns the dimension as whole pixels. Fractions are truncated.
func (d Dimension) Int() (int, bool) {
	f, err := strconv.ParseFloat(strings.TrimSuffix(string(d), "px"), 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}

// String returns the raw value, suitable for an HTML width/height attribute.
func (d Dimension) String() string {
	return string(d)
}

// apiResponse is the envelope the embed API wraps every answer in.
type apiResponse struct {
	Data struct {
		Error  json.RawMessage `json:"error"`
		Output *Embed          `json:"output"`
	} `json:"data"`
}

// errorMessage reports whether the envelope's error field is truthy and, if
// so, a readable form of it. null, false, 0 and "" are not errors.
func (r *apiResponse) errorMessage() (string, bool) {
	raw := bytes.TrimSpace(r.Data.Error)
	switch string(raw) {
	case "", "null", "false", "0", `""`:
		return "", false
	}

	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s, true
	}

	var obj struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		if obj.Message != "" {
			return obj.Message, true
		}
		if obj.Error != "" {
			return obj.Error, true
		}
	}

	return string(raw), true
}
