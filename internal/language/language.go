// Package language is the single registry of languages the Sauti client
// understands. Every language-dependent component (conversation session,
// capture locale selection, translator, voice commands, config validation)
// consumes this package rather than declaring its own list, so extending the
// set is a one-place change.
package language

// Code identifies one of the supported languages.
type Code string

const (
	English Code = "en"
	Hausa   Code = "ha"
	Yoruba  Code = "yo"
	Igbo    Code = "ig"
	Pidgin  Code = "pcm"
)

// info holds display and capture metadata for one language.
type info struct {
	label  string
	native string
	locale string
}

// registry is ordered; All returns codes in this order for stable selectors.
var registry = []Code{English, Hausa, Yoruba, Igbo, Pidgin}

var details = map[Code]info{
	English: {label: "English", native: "English", locale: "en-NG"},
	Hausa:   {label: "Hausa", native: "Hausa", locale: "ha-NG"},
	Yoruba:  {label: "Yoruba", native: "Yorùbá", locale: "yo-NG"},
	Igbo:    {label: "Igbo", native: "Igbo", locale: "ig-NG"},
	Pidgin:  {label: "Pidgin", native: "Pidgin", locale: "en-NG"},
}

// IsValid reports whether c is a recognised language code.
func (c Code) IsValid() bool {
	_, ok := details[c]
	return ok
}

// Label returns the English display name for c ("English", "Hausa", ...).
// Unknown codes return the code itself.
func (c Code) Label() string {
	if d, ok := details[c]; ok {
		return d.label
	}
	return string(c)
}

// Native returns the language's own name for itself.
// Unknown codes return the code itself.
func (c Code) Native() string {
	if d, ok := details[c]; ok {
		return d.native
	}
	return string(c)
}

// Locale returns the BCP-47 tag used when opening a speech capture stream for
// c. Pidgin has no recognition locale of its own and shares en-NG with
// English. Unknown codes fall back to en-US.
func (c Code) Locale() string {
	if d, ok := details[c]; ok {
		return d.locale
	}
	return "en-US"
}

// All returns every supported code in registry order.
func All() []Code {
	out := make([]Code, len(registry))
	copy(out, registry)
	return out
}
