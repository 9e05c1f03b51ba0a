// Package destination holds the static classification tables that decide
// whether a CONNECT target is safe to deep-inspect, should be tunneled
// transparently to preserve a web UI's experience, or is infrastructure that
// must never be inspected.
package destination

import "strings"

// Class is the static category a hostname falls into.
type Class int

const (
	// ClassUnknown means the hostname matched none of the static tables.
	ClassUnknown Class = iota
	// ClassAPI is a pure AI-provider API endpoint, safe to deep-inspect.
	ClassAPI
	// ClassWebUI is an AI web UI fronted by a challenge-protecting CDN;
	// deep inspection breaks the experience.
	ClassWebUI
	// ClassPassthrough is identity/storage infrastructure, never inspected.
	ClassPassthrough
	// ClassDesktopApp is a domain reached by known desktop-app clients,
	// relevant to the desktop-bypass dispatch clause.
	ClassDesktopApp
)

// Multiplier is the destination-risk multiplier (DM) used by the REU
// computation in the policy evaluator (spec §4.6).
type Multiplier float64

const (
	MultiplierEnterpriseApproved Multiplier = 0.5
	MultiplierBusinessSaaS       Multiplier = 1.0
	MultiplierPublicAI           Multiplier = 2.0
	MultiplierUnknown            Multiplier = 3.0
	MultiplierBanned             Multiplier = 5.0
)

// apiDomains are fully-qualified AI-provider API endpoints.
var apiDomains = []string{
	"api.openai.com",
	"api.anthropic.com",
	"api.cohere.ai",
	"api.mistral.ai",
	"generativelanguage.googleapis.com",
	"api.together.xyz",
	"api.groq.com",
	"api.perplexity.ai",
}

// webUIDomains are AI web UIs fronted by challenge-protecting CDNs.
var webUIDomains = []string{
	"chatgpt.com",
	"chat.openai.com",
	"claude.ai",
	"perplexity.ai",
	"gemini.google.com",
	"copilot.microsoft.com",
}

// passthroughDomains are identity/storage infrastructure never inspected.
var passthroughDomains = []string{
	"accounts.google.com",
	"oauth2.googleapis.com",
	"firebaseinstallations.googleapis.com",
	"firestore.googleapis.com",
	"identitytoolkit.googleapis.com",
	"securetoken.googleapis.com",
	"www.googleapis.com",
}

// desktopAppDomains are AI web-UI domains also reachable through first-party
// desktop clients, relevant to the desktop-bypass dispatch clause.
var desktopAppDomains = []string{
	"claude.ai",
	"chatgpt.com",
}

// toolNames maps a known AI destination hostname to the product name
// ActivityEvent.Tool reports ("tool (resolved from domain table)").
var toolNames = map[string]string{
	"api.openai.com":                    "openai",
	"chatgpt.com":                       "openai",
	"chat.openai.com":                   "openai",
	"api.anthropic.com":                 "anthropic",
	"claude.ai":                         "anthropic",
	"api.cohere.ai":                     "cohere",
	"api.mistral.ai":                    "mistral",
	"generativelanguage.googleapis.com": "gemini",
	"gemini.google.com":                 "gemini",
	"api.together.xyz":                  "together",
	"api.groq.com":                      "groq",
	"api.perplexity.ai":                 "perplexity",
	"perplexity.ai":                     "perplexity",
	"copilot.microsoft.com":             "copilot",
}

// Tool resolves host to its product name via toolNames, using the same
// exact-or-dot-suffix rule as Classify. A host matching no table entry
// falls back to its second-level label so unrecognized API domains still
// get a readable name instead of an empty string.
func Tool(host string) string {
	host = normalizeHost(host)
	if name, ok := toolNames[host]; ok {
		return name
	}
	for entry, name := range toolNames {
		if strings.HasSuffix(host, "."+entry) {
			return name
		}
	}
	labels := strings.Split(host, ".")
	if len(labels) >= 2 {
		return labels[len(labels)-2]
	}
	return host
}

// Classify returns the static Class for hostname, applying the exact-or-
// dot-suffix matching rule against each table in priority order:
// passthrough > api > web UI.
func Classify(host string) Class {
	host = normalizeHost(host)
	if matches(host, passthroughDomains) {
		return ClassPassthrough
	}
	if matches(host, apiDomains) {
		return ClassAPI
	}
	if matches(host, webUIDomains) {
		return ClassWebUI
	}
	return ClassUnknown
}

// DestinationMultiplier maps a Class to its REU destination multiplier
// (spec §4.6). There is no separate enterprise-approved/banned domain
// list in this proxy; the static classification tables double as the
// multiplier source: passthrough infrastructure is never inspected so it
// never reaches this call, and every inspectable AI destination is
// treated as public_ai.
func (c Class) DestinationMultiplier() Multiplier {
	switch c {
	case ClassAPI, ClassWebUI, ClassDesktopApp:
		return MultiplierPublicAI
	default:
		return MultiplierUnknown
	}
}

// IsDesktopApp reports whether host is a domain reachable via a first-party
// desktop client, independent of its primary Class.
func IsDesktopApp(host string) bool {
	return matches(normalizeHost(host), desktopAppDomains)
}

// IsLoopbackOrLocal reports whether host is loopback or a ".local" mDNS name.
func IsLoopbackOrLocal(host string) bool {
	host = normalizeHost(host)
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}
	return strings.HasSuffix(host, ".local")
}

// normalizeHost strips a trailing dot and lower-cases the hostname so table
// lookups are case- and trailing-dot-insensitive.
func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	return strings.TrimSuffix(host, ".")
}

// matches implements the spec's "exact hostname OR a dot-suffix of a listed
// domain" rule: host matches entry if host == entry or host ends in
// "."+entry.
func matches(host string, table []string) bool {
	for _, entry := range table {
		if host == entry || strings.HasSuffix(host, "."+entry) {
			return true
		}
	}
	return false
}
