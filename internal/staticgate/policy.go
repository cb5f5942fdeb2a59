package staticgate

import "regexp"

// TextPattern pairs a compiled regex with the literal pattern text used
// to name violations.
type TextPattern struct {
	Name string
	Re   *regexp.Regexp
}

// Policy is the data-driven table set the gate evaluates against.
// Spec.md section 9 calls these out explicitly as "data, not code" so
// the policy can evolve without recompilation; Policy is a plain
// struct precisely so a caller can load one from a config file instead
// of using DefaultPolicy.
type Policy struct {
	// TextPatterns are regexes scanned over the raw source text.
	TextPatterns []TextPattern
	// AllowedModules is the top-level-module allowlist for import and
	// from-import nodes.
	AllowedModules map[string]bool
	// ForbiddenCalls are bare-name or terminal-attribute call targets
	// that are always rejected.
	ForbiddenCalls map[string]bool
	// ForbiddenAttributes are attribute-access names that are always
	// rejected, regardless of the object they're accessed on.
	ForbiddenAttributes map[string]bool
}

// DefaultPolicy returns the minimum table set required by spec.md
// section 4.1.
func DefaultPolicy() Policy {
	textPatterns := []string{
		`\.\./`,
		`\.\.\\`,
		`/etc/`,
		`/proc/`,
		`/sys/`,
		`~/`,
	}
	compiled := make([]TextPattern, 0, len(textPatterns))
	for _, p := range textPatterns {
		compiled = append(compiled, TextPattern{Name: p, Re: regexp.MustCompile(p)})
	}

	allowedModules := []string{
		"json", "re", "string", "typing", "pathlib", "datetime", "time",
		"dataclasses", "enum", "itertools", "functools", "collections",
		"math", "statistics", "decimal", "fractions", "hashlib", "hmac",
		"base64", "binascii", "urllib", "copy", "contextlib", "abc",
		"numbers", "textwrap", "unicodedata", "uuid", "bisect", "heapq",
		"array", "struct",
	}
	allowed := make(map[string]bool, len(allowedModules))
	for _, m := range allowedModules {
		allowed[m] = true
	}

	forbiddenCalls := []string{
		"__import__", "eval", "exec", "compile", "open", "input",
		"getattr", "setattr", "delattr", "globals", "locals", "vars",
		"breakpoint",
	}
	calls := make(map[string]bool, len(forbiddenCalls))
	for _, c := range forbiddenCalls {
		calls[c] = true
	}

	forbiddenAttrs := []string{
		"__subclasses__", "__bases__", "__mro__", "__globals__",
		"__code__", "__closure__", "__builtins__", "__import__",
		"__loader__", "__spec__",
	}
	attrs := make(map[string]bool, len(forbiddenAttrs))
	for _, a := range forbiddenAttrs {
		attrs[a] = true
	}

	return Policy{
		TextPatterns:        compiled,
		AllowedModules:      allowed,
		ForbiddenCalls:      calls,
		ForbiddenAttributes: attrs,
	}
}
