package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Format
	}{
		{"json object", `{"x":1}`, FormatJSON},
		{"json array", `[1, 2, 3]`, FormatJSON},
		{"json with surrounding space", "  {\"a\": true}\n", FormatJSON},
		{"broken json braces falls through", `{not json}`, FormatRaw},
		{"xml", `<a><b/></a>`, FormatXML},
		{"hex grouped", `de ad be ef`, FormatHex},
		{"hex packed", `DEADBEEF`, FormatHex},
		{"odd hex is not hex", `abc`, FormatRaw},
		{"base64", `SGVsbG8gV29ybGQ=`, FormatBase64},
		{"short base64 alphabet is raw", `hello`, FormatRaw},
		{"number is raw", `21.5`, FormatRaw},
		{"empty is raw", ``, FormatRaw},
		{"plain text", `temperature is fine`, FormatRaw},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat(tt.payload))
		})
	}
}

func TestDetectFormat_HexBeatsBase64(t *testing.T) {
	// Ten hex digits are also valid base64 alphabet; hex has priority.
	assert.Equal(t, FormatHex, DetectFormat("0123456789"))
}

func TestValidatePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		format  Format
		wantErr error
	}{
		{"raw accepts anything", "%%%", FormatRaw, nil},
		{"detect accepts anything", "%%%", "", nil},
		{"valid json", `{"on":true}`, FormatJSON, nil},
		{"invalid json", `{"on":}`, FormatJSON, ErrInvalidPayload},
		{"valid xml", `<on/>`, FormatXML, nil},
		{"xml without bracket", `on/>`, FormatXML, ErrInvalidPayload},
		{"valid hex", `01 02 ff`, FormatHex, nil},
		{"invalid hex", `0g`, FormatHex, ErrInvalidPayload},
		{"valid base64", `aGk=`, FormatBase64, nil},
		{"invalid base64", `a*b`, FormatBase64, ErrInvalidPayload},
		{"unknown format", `x`, Format("yaml"), ErrUnknownFormat},
		{"empty json", "", FormatJSON, nil},
		{"blank json", "  \n", FormatJSON, nil},
		{"empty xml", "", FormatXML, nil},
		{"empty hex", "", FormatHex, nil},
		{"empty base64", "", FormatBase64, nil},
		{"empty unknown format", "", Format("yaml"), ErrUnknownFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayload(tt.payload, tt.format)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEncodePayload_CompactsJSON(t *testing.T) {
	got, err := EncodePayload("{\n  \"on\": true,\n  \"level\": 40\n}", FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, `{"on":true,"level":40}`, got)
}

func TestEncodePayload_EmptyJSONSentAsIs(t *testing.T) {
	got, err := EncodePayload("", FormatJSON)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEncodePayload_VerbatimForOtherFormats(t *testing.T) {
	got, err := EncodePayload("de ad", FormatHex)
	require.NoError(t, err)
	assert.Equal(t, "de ad", got)
}

func TestEncodePayload_RejectsMalformed(t *testing.T) {
	_, err := EncodePayload("zz", FormatHex)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" JSON ")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, Format(""), f)

	_, err = ParseFormat("protobuf")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
