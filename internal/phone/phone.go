// Package phone normalizes patient phone numbers to E.164 with the Egyptian
// country code as the default.
package phone

import "strings"

const egyptCode = "20"

// Normalize converts local formats to +20 E.164:
//
//	01012345678   -> +201012345678
//	201012345678  -> +201012345678
//	1012345678    -> +201012345678
//
// Numbers already carrying another country code with a leading + are kept.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	hasPlus := strings.HasPrefix(raw, "+")
	digits := digitsOnly(raw)
	if digits == "" {
		return ""
	}
	switch {
	case hasPlus:
		return "+" + digits
	case strings.HasPrefix(digits, "00"):
		return "+" + strings.TrimPrefix(digits, "00")
	case strings.HasPrefix(digits, "0"):
		return "+" + egyptCode + digits[1:]
	case strings.HasPrefix(digits, egyptCode) && len(digits) > 10:
		return "+" + digits
	default:
		return "+" + egyptCode + digits
	}
}

// Obscure hides the middle digits for logging.
func Obscure(number string) string {
	if len(number) < 8 {
		return number
	}
	return number[:len(number)-6] + "XXXX" + number[len(number)-2:]
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
