package voicecmd

import (
	"testing"

	"github.com/sautina/sauti/internal/language"
)

type recorder struct {
	commands []Command
}

func (r *recorder) handle(cmd Command) {
	r.commands = append(r.commands, cmd)
}

func newFilter(lang language.Code, rec *recorder, opts ...Option) *Filter {
	return New(func() language.Code { return lang }, rec.handle, opts...)
}

func TestInterceptExactPhrases(t *testing.T) {
	t.Parallel()

	cases := []struct {
		text string
		want Command
	}{
		{"new chat", CommandNewChat},
		{"Start over", CommandNewChat},
		{"learn mode", CommandLearnMode},
		{"stop listening", CommandStopListening},
		{"Stop Recording", CommandStopListening},
	}

	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			t.Parallel()

			rec := &recorder{}
			f := newFilter(language.English, rec)

			if !f.Intercept(tc.text) {
				t.Fatalf("Intercept(%q) = false, want match", tc.text)
			}
			if len(rec.commands) != 1 || rec.commands[0] != tc.want {
				t.Errorf("commands = %v, want [%s]", rec.commands, tc.want)
			}
		})
	}
}

func TestInterceptToleratesRecognitionNoise(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	f := newFilter(language.English, rec)

	if !f.Intercept("new chet") {
		t.Fatal("Intercept(\"new chet\") = false, want fuzzy match")
	}
	if len(rec.commands) != 1 || rec.commands[0] != CommandNewChat {
		t.Errorf("commands = %v, want [new_chat]", rec.commands)
	}
}

func TestInterceptPassesOrdinarySpeech(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	f := newFilter(language.English, rec)

	for _, text := range []string{
		"tell me about the weather in kano",
		"what does sannu mean",
		"",
		"   ",
	} {
		if f.Intercept(text) {
			t.Errorf("Intercept(%q) = true, want pass-through", text)
		}
	}
	if len(rec.commands) != 0 {
		t.Errorf("commands = %v, want none", rec.commands)
	}
}

func TestInterceptUsesActiveLanguageTable(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	f := newFilter(language.Hausa, rec)

	if !f.Intercept("daina sauraro") {
		t.Fatal("Hausa control phrase should match when Hausa is active")
	}
	// English phrases stay available alongside the native table.
	if !f.Intercept("new chat") {
		t.Fatal("English control phrase should match in any language")
	}
	if len(rec.commands) != 2 ||
		rec.commands[0] != CommandStopListening || rec.commands[1] != CommandNewChat {
		t.Errorf("commands = %v", rec.commands)
	}
}

func TestWithThreshold(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	f := newFilter(language.English, rec, WithThreshold(1.0))

	if f.Intercept("new chet") {
		t.Error("a strict threshold must reject noisy input")
	}
	if !f.Intercept("new chat") {
		t.Error("an exact phrase must still match at threshold 1.0")
	}
}
