// Package phone provides phone number utilities for channel addresses.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "BR"

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	candidate := trimmed
	if !strings.HasPrefix(candidate, "+") && len(digitsOnly(candidate)) >= 12 {
		// Gateways deliver full international numbers without the plus sign.
		candidate = "+" + digitsOnly(candidate)
	}

	number, err := phonenumbers.Parse(candidate, defaultRegion)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// Address converts a raw sender id or typed number into the canonical channel
// address stored in the database: E.164 digits without the plus sign.
// "5541999990000@s.whatsapp.net", "+55 41 99999-0000" and "(41) 99999-0000"
// all map to "5541999990000".
func Address(input string) string {
	raw := StripJID(input)
	normalized := NormalizeE164(raw)
	if strings.HasPrefix(normalized, "+") {
		return strings.TrimPrefix(normalized, "+")
	}
	return digitsOnly(raw)
}

// StripJID removes the channel suffix ("@s.whatsapp.net", "@c.us") and device part.
func StripJID(input string) string {
	trimmed := strings.TrimSpace(input)
	if at := strings.IndexByte(trimmed, '@'); at >= 0 {
		trimmed = trimmed[:at]
	}
	if colon := strings.IndexByte(trimmed, ':'); colon >= 0 {
		trimmed = trimmed[:colon]
	}
	return trimmed
}

// IsGroupOrBroadcast reports whether a chat id belongs to a group or status feed.
func IsGroupOrBroadcast(chatID string) bool {
	lower := strings.ToLower(strings.TrimSpace(chatID))
	return strings.HasSuffix(lower, "@g.us") ||
		strings.HasPrefix(lower, "status@") ||
		strings.HasSuffix(lower, "@broadcast") ||
		strings.HasSuffix(lower, "@newsletter")
}

func digitsOnly(input string) string {
	var b strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
