// Package phone provides phone number utilities.
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

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// FromJID extracts and normalizes the phone number from a WhatsApp JID
// such as "5511999998888@s.whatsapp.net".
func FromJID(jid string) string {
	number := jid
	if idx := strings.IndexByte(jid, '@'); idx >= 0 {
		number = jid[:idx]
	}
	number = strings.TrimSpace(number)
	if number == "" {
		return ""
	}
	if !strings.HasPrefix(number, "+") {
		number = "+" + number
	}
	return NormalizeE164(number)
}
