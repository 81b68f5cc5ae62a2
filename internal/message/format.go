package message

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Format is the classified or declared encoding of a payload.
type Format string

const (
	FormatRaw    Format = "raw"
	FormatJSON   Format = "json"
	FormatXML    Format = "xml"
	FormatHex    Format = "hex"
	FormatBase64 Format = "base64"
)

// minBase64Length is the length a payload must exceed before it is
// considered base64 rather than a short word.
const minBase64Length = 8

var (
	hexDetectPattern   = regexp.MustCompile(`^([0-9a-fA-F]{2}\s?)+$`)
	hexValidatePattern = regexp.MustCompile(`^([0-9a-fA-F]{2}\s?)*$`)
	base64Pattern      = regexp.MustCompile(`^[A-Za-z0-9+/]+=*$`)
)

// ParseFormat converts a format name to a Format. The empty string maps to
// the empty Format, meaning "detect".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatRaw, FormatJSON, FormatXML, FormatHex, FormatBase64:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// DetectFormat classifies a payload. Checks run on the trimmed text in
// priority order json, xml, hex, base64, raw.
func DetectFormat(payload string) Format {
	t := strings.TrimSpace(payload)

	if looksLikeJSON(t) && json.Valid([]byte(t)) {
		return FormatJSON
	}
	if strings.HasPrefix(t, "<") && strings.HasSuffix(t, ">") {
		return FormatXML
	}
	if hexDetectPattern.MatchString(t) {
		return FormatHex
	}
	if len(t) > minBase64Length && base64Pattern.MatchString(t) {
		return FormatBase64
	}
	return FormatRaw
}

func looksLikeJSON(t string) bool {
	return (strings.HasPrefix(t, "{") && strings.HasSuffix(t, "}")) ||
		(strings.HasPrefix(t, "[") && strings.HasSuffix(t, "]"))
}

// ValidatePayload checks a payload against its declared format before it is
// sent. Raw and empty formats accept anything, and an empty payload is
// valid in every format so retained messages can be cleared.
func ValidatePayload(payload string, format Format) error {
	t := strings.TrimSpace(payload)

	switch format {
	case "", FormatRaw:
		return nil
	case FormatJSON:
		if t != "" && !json.Valid([]byte(t)) {
			return fmt.Errorf("%w: invalid JSON", ErrInvalidPayload)
		}
	case FormatXML:
		if t != "" && !strings.HasPrefix(t, "<") {
			return fmt.Errorf("%w: XML must start with '<'", ErrInvalidPayload)
		}
	case FormatHex:
		if !hexValidatePattern.MatchString(t) {
			return fmt.Errorf("%w: invalid hex string", ErrInvalidPayload)
		}
	case FormatBase64:
		if _, err := base64.StdEncoding.DecodeString(t); err != nil {
			return fmt.Errorf("%w: invalid base64: %w", ErrInvalidPayload, err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return nil
}

// EncodePayload validates payload and returns the text that goes on the
// wire. JSON is compacted; every other format is sent verbatim.
func EncodePayload(payload string, format Format) (string, error) {
	if err := ValidatePayload(payload, format); err != nil {
		return "", err
	}
	if format != FormatJSON || strings.TrimSpace(payload) == "" {
		return payload, nil
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(strings.TrimSpace(payload))); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return buf.String(), nil
}
