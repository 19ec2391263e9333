// Package mediacode encodes per-asset playback metadata into the compact
// opaque string ("media code") persisted in the catalog.
package mediacode

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// FormatVersion is the only descriptor version this codec accepts.
const FormatVersion = 3

// TimeUnit is a fixed field carried for player compatibility.
const TimeUnit = 8

var ErrBadVersion = errors.New("unrecognized media code version")

// Descriptor bundles an asset's segment timing and derived identifiers.
// Field order matters: it fixes the JSON key order of the encoded form.
type Descriptor struct {
	Version       int       `json:"v"`
	TimeUnit      int       `json:"t"`
	Durations     []float64 `json:"s"`
	SegmentCount  int       `json:"c"`
	ChunkCode     string    `json:"m"`
	AccessToken   string    `json:"e"`
	DatePartition string    `json:"d"`
}

// Encode serializes the descriptor to compact JSON, base64url-encoded
// without padding.
func Encode(d Descriptor) (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Decode is the strict inverse of Encode. It rejects strings that are not
// base64url, not JSON, or carry an unknown format version.
func Decode(code string) (Descriptor, error) {
	b, err := base64.RawURLEncoding.DecodeString(code)
	if err != nil {
		return Descriptor{}, fmt.Errorf("media code is not base64url: %w", err)
	}
	var d Descriptor
	if err := json.Unmarshal(b, &d); err != nil {
		return Descriptor{}, fmt.Errorf("media code is not valid JSON: %w", err)
	}
	if d.Version != FormatVersion {
		return Descriptor{}, fmt.Errorf("%w: %d", ErrBadVersion, d.Version)
	}
	return d, nil
}
