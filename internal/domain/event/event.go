// Package event defines the canonical tracking event, its kinds and the
// argument conventions shared by every analytics backend.
package event

import (
	"github.com/google/uuid"
)

// Kind is the event taxonomy: a generic event or a social interaction.
type Kind int

const (
	// KindEvent is a generic event (links, forms, media, scroll, print...).
	KindEvent Kind = iota
	// KindSocial is a social-network interaction (like, share, follow...).
	KindSocial
)

// Type flags accepted by Track, as sent by page producers.
const (
	EventActionType  = 0
	SocialActionType = 1
)

const socialPrefix = "social:"

// String returns the hit type name used by the Google Analytics family.
func (k Kind) String() string {
	if k == KindSocial {
		return "social"
	}
	return "event"
}

// Classify maps a producer type flag to a Kind. Any non-zero flag is social.
func Classify(flag int) Kind {
	if flag != 0 {
		return KindSocial
	}
	return KindEvent
}

// Event is one normalized tracking call. It is built per Track call and
// passed by value; nothing modifies it after New returns.
//
// For social events Category holds the network, Action the social action and
// Label the target, mirroring the order producers use.
type Event struct {
	ID       string // correlation id for debug logs only
	Kind     Kind
	Category string
	Action   string
	Label    string
	HasLabel bool
}

// New builds an event from a producer type flag and up to three positional
// strings (category, action, label). Missing values degrade to "".
func New(flag int, args ...string) Event {
	e := Event{
		ID:   uuid.NewString(),
		Kind: Classify(flag),
	}
	if len(args) > 0 {
		e.Category = args[0]
	}
	if len(args) > 1 {
		e.Action = args[1]
	}
	if len(args) > 2 {
		e.Label = args[2]
		e.HasLabel = true
	}
	return e
}

// Token returns the string checked against the non-interaction list: the
// producer token ("video:html5", "scroll") for events and the social action
// ("like", "share") for social interactions.
func (e Event) Token() string {
	if e.Kind == KindSocial {
		return e.Action
	}
	return e.Category
}

// Fields returns the native positional tuple: category, action and, when
// present, label.
func (e Event) Fields() []string {
	if e.HasLabel {
		return []string{e.Category, e.Action, e.Label}
	}
	return []string{e.Category, e.Action}
}

// Args is Fields as a []any, ready to be spread into a backend call.
func (e Event) Args() []any {
	return toAny(e.Fields())
}

// Legacy returns the argument tuple for backends that only understand plain
// events. A social interaction (network, action, target) becomes
// ("social:"+action, network, target); plain events are unchanged.
func (e Event) Legacy() []string {
	if e.Kind != KindSocial {
		return e.Fields()
	}
	out := []string{socialPrefix + e.Action, e.Category}
	if e.HasLabel {
		out = append(out, e.Label)
	}
	return out
}

// LegacyArgs is Legacy as a []any.
func (e Event) LegacyArgs() []any {
	return toAny(e.Legacy())
}

// WithFields returns a copy of e carrying the given category, action and
// label. The copy keeps the ID and kind; HasLabel becomes true when a label
// was already present or the new label is non-empty.
func (e Event) WithFields(category, action, label string) Event {
	e.Category = category
	e.Action = action
	e.HasLabel = e.HasLabel || label != ""
	e.Label = label
	return e
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
