package event

import "strings"

// DefaultNonInteraction lists the producer tokens that do not count towards
// engagement: passive media playback, scroll depth, printing, device
// orientation, ad-block detection and colour-scheme reporting.
var DefaultNonInteraction = []string{ //nolint:gochecknoglobals // read-only default list
	"scroll", "print", "video", "audio", "orientation", "adblock", "color-scheme",
}

// Classifier decides whether an event is non-interaction. It is immutable
// after construction and safe for concurrent and re-entrant use.
type Classifier struct {
	tokens map[string]struct{}
}

// NewClassifier builds a classifier from the configured token list.
// Empty tokens are ignored.
func NewClassifier(tokens []string) Classifier {
	c := Classifier{tokens: make(map[string]struct{}, len(tokens))}
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			c.tokens[t] = struct{}{}
		}
	}
	return c
}

// Tokens returns the configured tokens in no particular order.
func (c Classifier) Tokens() []string {
	out := make([]string, 0, len(c.tokens))
	for t := range c.tokens {
		out = append(out, t)
	}
	return out
}

// IsNonInteraction reports whether token, or its leading run of word
// characters, is listed. "video:youtube" matches "video"; "videostream" does
// not, because the prefix must end at a non-word character.
func (c Classifier) IsNonInteraction(token string) bool {
	if token == "" || len(c.tokens) == 0 {
		return false
	}
	if _, ok := c.tokens[token]; ok {
		return true
	}
	prefix := wordPrefix(token)
	if prefix == "" || prefix == token {
		return false
	}
	_, ok := c.tokens[prefix]
	return ok
}

// Classify reports whether e is a non-interaction event.
func (c Classifier) Classify(e Event) bool {
	return c.IsNonInteraction(e.Token())
}

// wordPrefix returns the leading [A-Za-z0-9_] run of s.
func wordPrefix(s string) string {
	for i := 0; i < len(s); i++ {
		if !isWordByte(s[i]) {
			return s[:i]
		}
	}
	return s
}

func isWordByte(b byte) bool {
	return b == '_' ||
		('a' <= b && b <= 'z') ||
		('A' <= b && b <= 'Z') ||
		('0' <= b && b <= '9')
}
