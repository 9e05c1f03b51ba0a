// Package classify implements the deterministic, regex-based DLP
// classification engine: it scores a body of text against six weighted
// pattern-group categories and resolves a normalized sensitivity score and
// risk category. No ML, no network calls — classification of identical
// input bytes always returns an identical result.
package classify

import (
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Category is one of the six pattern groups the engine scores.
type Category string

const (
	CategoryPII          Category = "pii"
	CategoryFinancial    Category = "financial"
	CategorySourceCode   Category = "source_code"
	CategoryPHI          Category = "phi"
	CategoryTradeSecret  Category = "trade_secret"
	CategoryInternalURL  Category = "internal_url"
	CategoryNone         Category = "none"
)

// RiskCategory is the coarse risk bucket derived from the normalized score.
type RiskCategory string

const (
	RiskLow      RiskCategory = "low"
	RiskModerate RiskCategory = "moderate"
	RiskHigh     RiskCategory = "high"
	RiskCritical RiskCategory = "critical"
)

// hashSalt is the fixed, non-secret salt mixed into user/prompt hashes so
// the same input always yields the same correlation hash across process
// restarts. It is not a cryptographic secret — xxhash is non-cryptographic
// by design, used purely for dashboard correlation (spec §4.5).
const hashSalt = "complyze-proxy-dlp-v1"

// pattern is one named, pre-compiled detection signal within a category
// group.
type pattern struct {
	name string
	re   *regexp.Regexp
}

// group is a weighted category of patterns, scored together.
type group struct {
	category Category
	weight   int
	patterns []pattern
}

// Engine holds the pre-compiled pattern table, built once at construction
// for minimal per-classification overhead.
type Engine struct {
	groups []group
}

// NewEngine constructs an Engine with every category group's patterns
// compiled.
func NewEngine() *Engine {
	return &Engine{groups: buildGroups()}
}

func buildGroups() []group {
	return []group{
		{
			category: CategoryPII,
			weight:   4,
			patterns: compileAll(map[string]string{
				"ssn":         `\b\d{3}[-.\s]?\d{2}[-.\s]?\d{4}\b`,
				"email":       `\b[\w.+-]+@[\w-]+\.[a-zA-Z]{2,}\b`,
				"phone":       `\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`,
				"full_name":   `\b[A-Z][a-z]+\s+[A-Z][a-z]+\b`,
				"street":      `(?i)\b\d+\s+\w+\s+(?:street|st|avenue|ave|road|rd|boulevard|blvd|lane|ln|drive|dr)\b`,
				"dob_keyword": `(?i)\b(?:date\s+of\s+birth|dob|born\s+on)\b`,
			}),
		},
		{
			category: CategoryFinancial,
			weight:   4,
			patterns: compileAll(map[string]string{
				"credit_card":    `\b(?:\d[ -]*?){13,16}\b`,
				"routing_number": `(?i)\b(?:routing|aba)\s*(?:number|#)?\s*[:\-]?\s*\d{9}\b`,
				"account_number": `(?i)\baccount\s*(?:number|#)?\s*[:\-]?\s*\d{6,17}\b`,
				"iban":           `\b[A-Z]{2}\d{2}[A-Z0-9]{10,30}\b`,
				"swift":          `\b[A-Z]{6}[A-Z0-9]{2}(?:[A-Z0-9]{3})?\b`,
				"dollar_amount":  `\$\s?\d[\d,]*(?:\.\d{2})?`,
				"earnings":       `(?i)\b(?:quarterly\s+earnings|revenue\s+forecast|unreleased\s+financials)\b`,
			}),
		},
		{
			category: CategorySourceCode,
			weight:   2,
			patterns: compileAll(map[string]string{
				"function_def":  `\bfunction\s+\w+\s*\(`,
				"import_from":   `\bimport\s+.+\s+from\s+['"][\w./-]+['"]`,
				"sql_verb":      `(?i)\b(?:SELECT|INSERT\s+INTO|UPDATE|DELETE\s+FROM|DROP\s+TABLE)\b`,
				"arrow_fn":      `=>\s*\{`,
				"comment_block": `/\*[\s\S]*?\*/|^\s*//`,
			}),
		},
		{
			category: CategoryPHI,
			weight:   5,
			patterns: compileAll(map[string]string{
				"diagnosis":    `(?i)\bdiagnos(?:is|ed)\b`,
				"prescription": `(?i)\bprescri(?:ption|bed)\b`,
				"icd_code":     `(?i)\bICD-?10?[-\s]?[A-Z]\d{2}(?:\.\d+)?\b`,
				"cpt_code":     `(?i)\bCPT\s*[-:]?\s*\d{4,5}\b`,
				"hcpcs_code":   `(?i)\bHCPCS\s*[-:]?\s*[A-Z]\d{4}\b`,
				"ndc_code":     `(?i)\bNDC\s*[-:]?\s*\d{4,5}-\d{3,4}-\d{1,2}\b`,
				"vitals":       `(?i)\b(?:blood\s+pressure|heart\s+rate|BPM|mg/dL)\b`,
				"imaging":      `(?i)\b(?:MRI|CT\s+scan|X-ray|ultrasound)\b`,
				"hipaa":        `(?i)\bHIPAA\b`,
			}),
		},
		{
			category: CategoryTradeSecret,
			weight:   5,
			patterns: compileAll(map[string]string{
				"confidential":    `(?i)\bconfidential\b`,
				"nda":             `(?i)\bNDA\b|\bnon-disclosure\s+agreement\b`,
				"patent_pending":  `(?i)\bpatent\s+pending\b`,
				"strategic_plan":  `(?i)\bstrategic\s+plan\b`,
				"proprietary":     `(?i)\bproprietary\b`,
			}),
		},
		{
			category: CategoryInternalURL,
			weight:   3,
			patterns: compileAll(map[string]string{
				"rfc1918_10":      `\b10\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`,
				"rfc1918_172":     `\b172\.(?:1[6-9]|2\d|3[01])\.\d{1,3}\.\d{1,3}\b`,
				"rfc1918_192":     `\b192\.168\.\d{1,3}\.\d{1,3}\b`,
				"localhost":       `(?i)\blocalhost\b`,
				"internal_suffix": `(?i)\b[\w-]+\.(?:internal|corp|local|lan)\b`,
			}),
		},
	}
}

func compileAll(raw map[string]string) []pattern {
	patterns := make([]pattern, 0, len(raw))
	for name, expr := range raw {
		patterns = append(patterns, pattern{name: name, re: regexp.MustCompile(expr)})
	}
	return patterns
}

// Result is the outcome of classifying one body of text.
type Result struct {
	CategoriesDetected   []Category
	SensitivityScore     int
	PolicyViolationFlag  bool
	RiskCategory         RiskCategory
	Details              []string
	PIIMatchCount        int
	ScanDuration         time.Duration
}

// Classify scores text against all six category groups and resolves the
// normalized sensitivity score and risk category. Deterministic: identical
// input bytes always produce an identical Result.
func (e *Engine) Classify(text string) Result {
	start := time.Now()

	if text == "" {
		return Result{
			CategoriesDetected: []Category{CategoryNone},
			RiskCategory:       RiskLow,
			ScanDuration:       time.Since(start),
		}
	}

	var (
		raw          int
		categories   []Category
		details      []string
		piiMatches   int
		anyViolation bool
	)

	for _, g := range e.groups {
		matched := 0
		for _, p := range g.patterns {
			matched += len(p.re.FindAllStringIndex(text, -1))
		}
		if matched == 0 {
			continue
		}
		categories = append(categories, g.category)
		points := matched * g.weight
		if points > 20 {
			points = 20
		}
		raw += points
		details = append(details, fmt.Sprintf("%s: %d pattern match(es)", g.category, matched))

		if g.category == CategoryPII {
			piiMatches = matched
		}
		switch g.category {
		case CategoryPII, CategoryFinancial, CategoryPHI, CategoryTradeSecret:
			anyViolation = true
		}
	}

	if len(categories) == 0 {
		return Result{
			CategoriesDetected: []Category{CategoryNone},
			RiskCategory:       RiskLow,
			ScanDuration:       time.Since(start),
		}
	}

	score := int(math.Min(math.Round(float64(raw)/40*100), 100))

	risk := resolveRisk(score, categories, piiMatches)

	return Result{
		CategoriesDetected:  categories,
		SensitivityScore:    score,
		PolicyViolationFlag: anyViolation,
		RiskCategory:        risk,
		Details:             details,
		PIIMatchCount:       piiMatches,
		ScanDuration:        time.Since(start),
	}
}

// resolveRisk implements the risk-category ordering from spec §4.5/§8:
// critical when score>=75, OR PHI matched, OR PII matched with matchCount>1;
// else high (>=50), moderate (>=25), low otherwise.
func resolveRisk(score int, categories []Category, piiMatches int) RiskCategory {
	hasPHI := false
	for _, c := range categories {
		if c == CategoryPHI {
			hasPHI = true
			break
		}
	}
	if score >= 75 || hasPHI || piiMatches > 1 {
		return RiskCritical
	}
	if score >= 50 {
		return RiskHigh
	}
	if score >= 25 {
		return RiskModerate
	}
	return RiskLow
}

// TokenEstimate returns the rough token-count estimate spec §3 defines:
// ceil(len(text)/4).
func TokenEstimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(math.Ceil(float64(len(text)) / 4))
}

// Hash returns a deterministic, non-cryptographic, salted hash of the form
// "h_<base36>", used only for dashboard correlation (never reversible to
// the original content by design intent, though xxhash offers no
// cryptographic guarantee).
func Hash(text string) string {
	h := xxhash.Sum64String(hashSalt + text)
	return "h_" + toBase36(h)
}

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func toBase36(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [13]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = base36Alphabet[n%36]
		n /= 36
	}
	return string(buf[i:])
}
