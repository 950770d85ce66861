package models

import "encoding/json"

// AdType tags how an ad payload is interpreted. Values outside the
// known set are stored as-is.
type AdType string

const (
	AdTypeImage AdType = "image"
	AdTypeVideo AdType = "video"
	AdTypeText  AdType = "text"
)

// TimestampLayout is the ISO-8601 form used for CreatedAt (UTC, milliseconds).
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Ad is a single advertisement. Payload is a URL for image/video ads and
// plain text for text ads. Meta holds optional fields such as title and link.
type Ad struct {
	ID        string         `json:"id"`
	Type      AdType         `json:"type"`
	Payload   string         `json:"payload"`
	Meta      map[string]any `json:"meta"`
	CreatedAt string         `json:"createdAt"`
}

// AdPatch is a partial update. Nil fields are left untouched; Meta, when
// present, replaces the existing meta object. An explicit "meta": null sets
// ClearMeta, which stores a null meta. ID and CreatedAt cannot be patched.
type AdPatch struct {
	Type      *AdType        `json:"type,omitempty"`
	Payload   *string        `json:"payload,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
	ClearMeta bool           `json:"-"`
}

// UnmarshalJSON tells an absent meta apart from an explicit null.
func (p *AdPatch) UnmarshalJSON(b []byte) error {
	type plain AdPatch
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	*p = AdPatch(v)
	if m, ok := fields["meta"]; ok && string(m) == "null" {
		p.ClearMeta = true
	}
	return nil
}

// Apply merges the patch into a.
func (p AdPatch) Apply(a *Ad) {
	if p.Type != nil {
		a.Type = *p.Type
	}
	if p.Payload != nil {
		a.Payload = *p.Payload
	}
	switch {
	case p.Meta != nil:
		a.Meta = p.Meta
	case p.ClearMeta:
		a.Meta = nil
	}
}

// Empty reports whether the patch changes nothing.
func (p AdPatch) Empty() bool {
	return p.Type == nil && p.Payload == nil && p.Meta == nil && !p.ClearMeta
}
