package events_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitepulse/internal/events"
)

const validPayload = `{
	"type": "pageview",
	"siteId": "site-1",
	"visitorId": "7a3e1f9c-5b2d-4e8a-9c6f-1d2e3f4a5b6c",
	"sessionId": "8b4f2a0d-6c3e-4f9b-8d7a-2e3f4a5b6c7d",
	"url": "https://shop.example.com/products?utm_source=newsletter",
	"path": "/products",
	"referrer": "https://www.google.com/search",
	"title": "Products",
	"width": 1920,
	"height": 1080,
	"language": "en-US",
	"userAgent": "Mozilla/5.0 Chrome/120.0.0.0"
}`

func TestParsePageViewInput_Valid(t *testing.T) {
	input, err := events.ParsePageViewInput([]byte(validPayload))
	require.NoError(t, err)

	assert.Equal(t, "pageview", input.Type)
	assert.Equal(t, "site-1", input.SiteID)
	assert.Equal(t, "/products", input.Path)
	assert.Equal(t, 1920, input.ScreenWidth)
	assert.Equal(t, "en-US", input.Language)
}

func TestParsePageViewInput_FieldErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		field   string
	}{
		{
			name:    "wrong event type",
			payload: `{"type":"click","siteId":"s","visitorId":"7a3e1f9c-5b2d-4e8a-9c6f-1d2e3f4a5b6c","sessionId":"8b4f2a0d-6c3e-4f9b-8d7a-2e3f4a5b6c7d","url":"https://a.com/","path":"/","userAgent":"ua"}`,
			field:   "type",
		},
		{
			name:    "missing site id",
			payload: `{"type":"pageview","visitorId":"7a3e1f9c-5b2d-4e8a-9c6f-1d2e3f4a5b6c","sessionId":"8b4f2a0d-6c3e-4f9b-8d7a-2e3f4a5b6c7d","url":"https://a.com/","path":"/","userAgent":"ua"}`,
			field:   "siteId",
		},
		{
			name:    "malformed visitor id",
			payload: `{"type":"pageview","siteId":"s","visitorId":"not-a-uuid","sessionId":"8b4f2a0d-6c3e-4f9b-8d7a-2e3f4a5b6c7d","url":"https://a.com/","path":"/","userAgent":"ua"}`,
			field:   "visitorId",
		},
		{
			name:    "malformed session id",
			payload: `{"type":"pageview","siteId":"s","visitorId":"7a3e1f9c-5b2d-4e8a-9c6f-1d2e3f4a5b6c","sessionId":"nope","url":"https://a.com/","path":"/","userAgent":"ua"}`,
			field:   "sessionId",
		},
		{
			name:    "relative url",
			payload: `{"type":"pageview","siteId":"s","visitorId":"7a3e1f9c-5b2d-4e8a-9c6f-1d2e3f4a5b6c","sessionId":"8b4f2a0d-6c3e-4f9b-8d7a-2e3f4a5b6c7d","url":"/products","path":"/","userAgent":"ua"}`,
			field:   "url",
		},
		{
			name:    "missing path",
			payload: `{"type":"pageview","siteId":"s","visitorId":"7a3e1f9c-5b2d-4e8a-9c6f-1d2e3f4a5b6c","sessionId":"8b4f2a0d-6c3e-4f9b-8d7a-2e3f4a5b6c7d","url":"https://a.com/","userAgent":"ua"}`,
			field:   "path",
		},
		{
			name:    "missing user agent",
			payload: `{"type":"pageview","siteId":"s","visitorId":"7a3e1f9c-5b2d-4e8a-9c6f-1d2e3f4a5b6c","sessionId":"8b4f2a0d-6c3e-4f9b-8d7a-2e3f4a5b6c7d","url":"https://a.com/","path":"/"}`,
			field:   "userAgent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := events.ParsePageViewInput([]byte(tt.payload))
			require.Error(t, err)
			assert.Nil(t, input)

			var invalid *events.InvalidInputError
			require.True(t, errors.As(err, &invalid))
			assert.Contains(t, invalid.Fields, tt.field)
		})
	}
}

func TestParsePageViewInput_InvalidJSON(t *testing.T) {
	input, err := events.ParsePageViewInput([]byte(`{not json`))
	require.Error(t, err)
	assert.Nil(t, input)

	var invalid *events.InvalidInputError
	require.True(t, errors.As(err, &invalid))
	assert.Contains(t, invalid.Fields, "body")
}

func TestParsePageViewInput_OptionalFieldsOmitted(t *testing.T) {
	payload := `{"type":"pageview","siteId":"s","visitorId":"7a3e1f9c-5b2d-4e8a-9c6f-1d2e3f4a5b6c","sessionId":"8b4f2a0d-6c3e-4f9b-8d7a-2e3f4a5b6c7d","url":"https://a.com/","path":"/","userAgent":"ua"}`

	input, err := events.ParsePageViewInput([]byte(payload))
	require.NoError(t, err)
	assert.Empty(t, input.Referrer)
	assert.Empty(t, input.Title)
	assert.Zero(t, input.ScreenWidth)
	assert.Zero(t, input.SessionStartTime)
}
