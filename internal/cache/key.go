package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"unicode"
)

// SchemaVersion is folded into every fingerprint. Bump it whenever the key
// construction or the stored entry format changes; old entries then become
// unreachable instead of being reused incompatibly.
const SchemaVersion = 2

// slugRunes bounds the human-legible fragment appended to each fingerprint.
const slugRunes = 24

// KeyInput are the synthesis inputs that define a cached segment.
type KeyInput struct {
	Text     string
	Voice    string
	Model    string
	Provider string
}

// ComputeKey returns the deterministic fingerprint for a segment:
// a SHA-256 over the key-sorted JSON of the synthesis inputs, with a
// lowercased text fragment appended for storage sharding and debuggability.
// Identical inputs always produce identical keys; any differing field
// produces a different key.
func ComputeKey(in KeyInput) string {
	payload, _ := json.Marshal(map[string]any{
		"text":     normalizeText(in.Text),
		"voice_id": in.Voice,
		"model_id": in.Model,
		"provider": in.Provider,
		"version":  SchemaVersion,
	})
	sum := sha256.Sum256(payload)
	hash := hex.EncodeToString(sum[:])

	if slug := keySlug(in.Text); slug != "" {
		return hash + "-" + slug
	}
	return hash
}

// normalizeText collapses whitespace so that formatting-only differences in
// the script don't fragment the cache.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// keySlug derives the legible fragment: lowercased, non-alphanumeric runs
// collapsed to single dashes, truncated by codepoint. Truncating by rune
// rather than byte keeps the fragment well-formed for non-ASCII scripts; the
// hash alone carries the identity, so the slug never affects correctness.
func keySlug(text string) string {
	var b strings.Builder
	lastDash := true // suppress leading dash
	n := 0
	for _, r := range strings.ToLower(normalizeText(text)) {
		if n >= slugRunes {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastDash = false
			n++
		} else if !lastDash {
			b.WriteRune('-')
			lastDash = true
			n++
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
