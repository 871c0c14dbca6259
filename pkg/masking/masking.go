// Package masking scrubs secret-shaped substrings from model responses
// before they are persisted or fed into a later stage's prompt.
//
// Adapted from tarsy's pkg/masking/{service,pattern}.go MCP-tool-result/
// alert-payload masking service, with its MCP server registry and
// per-server custom-pattern plumbing stripped (no analog here — there is
// one redaction surface: provider responses) but its core mechanism kept
// verbatim in spirit: patterns are compiled once at construction, invalid
// patterns are logged and skipped rather than failing startup, and
// masking failure is handled explicitly rather than left to panic.
package masking

import (
	"log/slog"
	"regexp"
)

// Pattern is a named regex substitution, mirroring CompiledPattern's shape.
type Pattern struct {
	Name        string
	Pattern     string
	Replacement string
}

// compiledPattern is a Pattern with its regex pre-compiled.
type compiledPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// BuiltinPatterns covers the secret shapes an LLM is liable to echo back
// from context (API keys, bearer tokens, AWS-style keys, private key PEM
// blocks) — the generalization of tarsy's Kubernetes-secret-specific
// built-ins to this module's "redact what a model said" domain.
var BuiltinPatterns = []Pattern{
	{Name: "bearer_token", Pattern: `(?i)bearer\s+[A-Za-z0-9\-._~+/]+=*`, Replacement: "Bearer [REDACTED]"},
	{Name: "api_key_assignment", Pattern: `(?i)(api[_-]?key|secret|token)\s*[:=]\s*['"]?[A-Za-z0-9\-._~+/]{16,}['"]?`, Replacement: "$1=[REDACTED]"},
	{Name: "aws_access_key", Pattern: `\bAKIA[0-9A-Z]{16}\b`, Replacement: "[REDACTED_AWS_KEY]"},
	{Name: "private_key_block", Pattern: `-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`, Replacement: "[REDACTED_PRIVATE_KEY]"},
}

// Redactor applies a compiled-pattern registry, plus any registered
// structural Maskers, to text. Created once at startup; thread-safe and
// stateless aside from its compiled patterns, per tarsy's MaskingService.
type Redactor struct {
	patterns []compiledPattern
	maskers  []Masker
}

// NewRedactor compiles builtin plus any caller-supplied custom patterns,
// and registers the builtin structural maskers. Invalid patterns are
// logged and skipped (fail-soft at construction, same as
// compileBuiltinPatterns/compileCustomPatterns) rather than aborting
// startup over one bad regex.
func NewRedactor(custom ...Pattern) *Redactor {
	r := &Redactor{}
	r.compile(BuiltinPatterns)
	r.compile(custom)
	r.maskers = append(r.maskers, &KubernetesSecretMasker{})

	slog.Info("redactor initialized", "patterns", len(r.patterns), "maskers", len(r.maskers))
	return r
}

func (r *Redactor) compile(patterns []Pattern) {
	for _, p := range patterns {
		compiled, err := regexp.Compile(p.Pattern)
		if err != nil {
			slog.Error("failed to compile redaction pattern, skipping", "pattern", p.Name, "error", err)
			continue
		}
		r.patterns = append(r.patterns, compiledPattern{name: p.Name, regex: compiled, replacement: p.Replacement})
	}
}

// Redact applies structural maskers first (more specific, e.g. a pasted
// Kubernetes Secret manifest), then compiled regex patterns as a general
// sweep, mirroring MaskingService.applyMasking's two-phase order. Unlike
// tarsy's tool-result path, there is no fail-closed mode here: a
// model response that fails to scrub cleanly is still the user's own
// conversation data, so Redact cannot itself fail — it only ever narrows
// content, never replaces it wholesale.
func (r *Redactor) Redact(content string) string {
	masked := content

	for _, m := range r.maskers {
		if m.AppliesTo(masked) {
			masked = m.Mask(masked)
		}
	}

	for _, p := range r.patterns {
		masked = p.regex.ReplaceAllString(masked, p.replacement)
	}
	return masked
}
