package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdPatch_Apply(t *testing.T) {
	a := Ad{ID: "ad_1", Type: AdTypeImage, Payload: "https://x/a.png", Meta: map[string]any{"title": "A"}, CreatedAt: "2024-01-01T00:00:00.000Z"}

	payload := "https://x/b.png"
	AdPatch{Payload: &payload}.Apply(&a)
	assert.Equal(t, "https://x/b.png", a.Payload)
	assert.Equal(t, AdTypeImage, a.Type)
	assert.Equal(t, map[string]any{"title": "A"}, a.Meta)

	typ := AdTypeVideo
	AdPatch{Type: &typ, Meta: map[string]any{"link": "https://x"}}.Apply(&a)
	assert.Equal(t, AdTypeVideo, a.Type)
	assert.Equal(t, map[string]any{"link": "https://x"}, a.Meta)
	assert.Equal(t, "ad_1", a.ID)
	assert.Equal(t, "2024-01-01T00:00:00.000Z", a.CreatedAt)
}

func TestAdPatch_DecodeIgnoresImmutableFields(t *testing.T) {
	var p AdPatch
	require.NoError(t, json.Unmarshal([]byte(`{"id":"ad_x","createdAt":"1999","payload":"hi"}`), &p))
	require.NotNil(t, p.Payload)
	assert.Equal(t, "hi", *p.Payload)
	assert.False(t, p.Empty())
	assert.True(t, AdPatch{}.Empty())
}

func TestAdPatch_MetaNullClearsMeta(t *testing.T) {
	a := Ad{ID: "ad_1", Meta: map[string]any{"title": "A"}}

	var absent AdPatch
	require.NoError(t, json.Unmarshal([]byte(`{"payload":"p"}`), &absent))
	absent.Apply(&a)
	assert.Equal(t, map[string]any{"title": "A"}, a.Meta)

	var null AdPatch
	require.NoError(t, json.Unmarshal([]byte(`{"meta": null}`), &null))
	assert.True(t, null.ClearMeta)
	assert.False(t, null.Empty())
	null.Apply(&a)
	assert.Nil(t, a.Meta)

	b, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"meta":null`)
}

func TestAd_JSONShape(t *testing.T) {
	a := Ad{ID: "ad_1", Type: AdTypeText, Payload: "Hello", Meta: map[string]any{}, CreatedAt: "2024-01-01T00:00:00.000Z"}
	b, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"ad_1","type":"text","payload":"Hello","meta":{},"createdAt":"2024-01-01T00:00:00.000Z"}`, string(b))
}
