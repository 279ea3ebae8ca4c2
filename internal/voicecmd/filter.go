// Package voicecmd implements spoken-control detection on recognition finals.
// A final fragment that fuzzily matches a known control phrase ("new chat",
// "learn mode", "stop listening") triggers the control instead of entering
// the transcript. Matching uses Jaro-Winkler similarity so normal ASR noise
// ("new chet") still lands.
package voicecmd

import (
	"log/slog"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/sautina/sauti/internal/language"
)

// Command identifies one spoken control.
type Command string

const (
	CommandNewChat       Command = "new_chat"
	CommandLearnMode     Command = "learn_mode"
	CommandStopListening Command = "stop_listening"
)

// defaultThreshold is the minimum Jaro-Winkler score for a phrase match.
const defaultThreshold = 0.88

// phrases maps each language to its spoken control phrases. Languages without
// a table fall back to English; English phrases are always accepted on top of
// the native ones since speakers mix freely.
var phrases = map[language.Code]map[Command][]string{
	language.English: {
		CommandNewChat:       {"new chat", "new conversation", "start over"},
		CommandLearnMode:     {"learn mode", "learning mode"},
		CommandStopListening: {"stop listening", "stop recording"},
	},
	language.Hausa: {
		CommandNewChat:       {"sabuwar hira"},
		CommandLearnMode:     {"yanayin koyo"},
		CommandStopListening: {"daina sauraro"},
	},
	language.Yoruba: {
		CommandNewChat:       {"ibanisoro tuntun"},
		CommandLearnMode:     {"ipo eko"},
		CommandStopListening: {"duro gbigbo"},
	},
	language.Igbo: {
		CommandNewChat:       {"mkparita uka ohuru"},
		CommandLearnMode:     {"onodu omumu"},
		CommandStopListening: {"kwusi ige nti"},
	},
	language.Pidgin: {
		CommandNewChat:       {"new tok", "start again"},
		CommandLearnMode:     {"learn mode"},
		CommandStopListening: {"stop to listen", "no dey listen"},
	},
}

// Option is a functional option for configuring a Filter.
type Option func(*Filter)

// WithThreshold sets the minimum Jaro-Winkler score required for a phrase
// match. Default: 0.88.
func WithThreshold(threshold float64) Option {
	return func(f *Filter) {
		f.threshold = threshold
	}
}

// Filter checks final fragments against the control phrase tables and hands
// matches to the handler. It is stateless apart from its configuration; safe
// for concurrent use.
type Filter struct {
	threshold float64
	lang      func() language.Code
	handle    func(Command)
}

// New creates a Filter. lang supplies the active conversation language (its
// phrase table is consulted in addition to English); handle receives every
// matched command.
func New(lang func() language.Code, handle func(Command), opts ...Option) *Filter {
	f := &Filter{
		threshold: defaultThreshold,
		lang:      lang,
		handle:    handle,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Intercept tests one final fragment. A match triggers the command and
// consumes the fragment; anything else flows into the transcript untouched.
func (f *Filter) Intercept(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return false
	}

	cmd, phrase, score, ok := f.match(normalized)
	if !ok {
		return false
	}

	slog.Info("voice command matched",
		"command", cmd,
		"phrase", phrase,
		"score", score,
		"text", text,
	)
	f.handle(cmd)
	return true
}

// match scans the active language's table plus the English one and returns
// the best-scoring command at or above the threshold.
func (f *Filter) match(normalized string) (Command, string, float64, bool) {
	var (
		bestCmd    Command
		bestPhrase string
		bestScore  float64
	)

	for _, table := range f.tables() {
		for cmd, candidates := range table {
			for _, phrase := range candidates {
				score := matchr.JaroWinkler(normalized, phrase, false)
				if score > bestScore {
					bestCmd, bestPhrase, bestScore = cmd, phrase, score
				}
			}
		}
	}

	if bestScore < f.threshold {
		return "", "", 0, false
	}
	return bestCmd, bestPhrase, bestScore, true
}

func (f *Filter) tables() []map[Command][]string {
	active := f.lang()
	if active == language.English {
		return []map[Command][]string{phrases[language.English]}
	}
	if table, ok := phrases[active]; ok {
		return []map[Command][]string{table, phrases[language.English]}
	}
	return []map[Command][]string{phrases[language.English]}
}
