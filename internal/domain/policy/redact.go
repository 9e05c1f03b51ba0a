package policy

import "regexp"

// redactionPattern pairs a compiled pattern with the literal token that
// replaces each match.
type redactionPattern struct {
	re    *regexp.Regexp
	token string
}

// redactionPatterns is the fixed set of patterns the redact action rewrites
// (spec §4.6): email, SSN, credit card, phone, RFC1918 IPv4.
var redactionPatterns = []redactionPattern{
	{regexp.MustCompile(`\b[\w.+-]+@[\w-]+\.[a-zA-Z]{2,}\b`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(`\b\d{3}[-.\s]?\d{2}[-.\s]?\d{4}\b`), "[REDACTED_SSN]"},
	{regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`), "[REDACTED_CC]"},
	{regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`), "[REDACTED_PHONE]"},
	{regexp.MustCompile(`\b10\.\d{1,3}\.\d{1,3}\.\d{1,3}\b|\b172\.(?:1[6-9]|2\d|3[01])\.\d{1,3}\.\d{1,3}\b|\b192\.168\.\d{1,3}\.\d{1,3}\b`), "[REDACTED_IP]"},
}

// Redact rewrites body, replacing each redaction-target match with its
// "[REDACTED_*]" token. Returns the original bytes unchanged (same slice)
// when nothing matched, so callers can cheaply detect a no-op via byte
// equality.
func Redact(body []byte) []byte {
	text := string(body)
	changed := false
	for _, rp := range redactionPatterns {
		if rp.re.MatchString(text) {
			text = rp.re.ReplaceAllString(text, rp.token)
			changed = true
		}
	}
	if !changed {
		return body
	}
	return []byte(text)
}
