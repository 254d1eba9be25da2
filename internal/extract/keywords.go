package extract

import (
	"context"
	"strings"
	"unicode"
)

// #region keyword-tables

type phraseSet struct {
	concept string
	phrases []string
}

// keywordTables lists, per extractor field, the surface phrases that
// indicate each concept. The first matching phrase wins.
var keywordTables = map[string][]phraseSet{
	"emotions": {
		{"stress", []string{"stressed", "overwhelmed", "pressure", "tense", "burned out", "frazzled", "killing me", "stressing"}},
		{"anxiety", []string{"anxious", "nervous", "worried", "scared", "uneasy", "on edge", "dread", "restless", "racing thoughts"}},
		{"panic", []string{"panic", "panicking", "terrified", "freaking out", "terror", "heart racing", "can't breathe"}},
		{"sadness", []string{"sad", "unhappy", "down", "blue", "crying", "miserable", "empty", "hollow"}},
		{"depression", []string{"depressed", "hopeless", "despair", "no will to live", "pointless"}},
		{"irritability", []string{"irritated", "angry", "frustrated", "mad", "agitated"}},
		{"overwhelm", []string{"overwhelmed", "too much", "can't handle", "breaking point", "can't cope"}},
	},
	"symptoms": {
		{"insomnia", []string{"can't sleep", "sleepless", "trouble sleeping", "awake all night", "no sleep"}},
		{"fatigue", []string{"tired", "exhausted", "no energy", "drained", "worn out", "lethargic"}},
		{"restlessness", []string{"restless", "can't sit still", "fidgeting", "pacing", "shaking"}},
		{"heart_symptoms", []string{"heart racing", "heart pounding", "palpitations", "chest pounding"}},
		{"breathing", []string{"can't breathe", "short of breath", "breathless", "hyperventilating"}},
		{"appetite", []string{"not eating", "no appetite", "lost appetite", "binge eating"}},
		{"withdrawal", []string{"avoiding", "isolating", "withdrawn", "hiding", "avoid everyone"}},
		{"anhedonia", []string{"lost interest", "don't care", "nothing matters", "numb", "apathy"}},
		{"concentration", []string{"can't focus", "distracted", "brain fog", "can't concentrate"}},
	},
	"triggers": {
		{"academic", []string{"exam", "exams", "finals", "midterms", "grades", "homework", "thesis", "classes"}},
		{"financial", []string{"money", "debt", "broke", "rent", "bills", "loans", "tuition"}},
		{"family", []string{"family", "parents", "mom", "dad", "divorce"}},
		{"social", []string{"friends", "lonely", "bullied", "relationship", "breakup", "judged"}},
		{"work", []string{"job", "boss", "deadline", "fired", "overworked"}},
	},
}

var (
	intensityHigh = []string{"extremely", "very", "so", "really", "incredibly", "severely", "killing me"}
	intensityLow  = []string{"slightly", "a bit", "somewhat", "little", "mildly"}

	// negators cancel a phrase that immediately follows them.
	negators = []string{"not", "don't feel", "don't have", "no longer", "never", "not feeling"}
)

// #endregion keyword-tables

// #region keyword-extractor

// Keywords is an offline Extractor that matches fixed phrase tables against
// the text. It stands in for the extractor service when none is reachable.
type Keywords struct{}

// Extract implements Extractor. It never fails.
func (Keywords) Extract(_ context.Context, text string) (Result, error) {
	return ExtractText(text), nil
}

// ExtractText matches text against the keyword tables. Negated phrases
// ("not anxious", "no longer tired") are skipped.
func ExtractText(text string) Result {
	tokens := tokenize(text)
	concepts := make(map[string][]string, len(groups))
	for _, group := range groups {
		for _, set := range keywordTables[group.field] {
			if matchesAny(tokens, set.phrases) {
				concepts[group.field] = append(concepts[group.field], set.concept)
			}
		}
	}
	return mapConcepts(concepts, detectIntensity(tokens))
}

func detectIntensity(tokens []string) string {
	for _, marker := range intensityHigh {
		if len(findPhrase(tokens, marker)) > 0 {
			return "high"
		}
	}
	for _, marker := range intensityLow {
		if len(findPhrase(tokens, marker)) > 0 {
			return "low"
		}
	}
	return "medium"
}

// #endregion keyword-extractor

// #region matching

func matchesAny(tokens []string, phrases []string) bool {
	for _, phrase := range phrases {
		for _, at := range findPhrase(tokens, phrase) {
			if !negated(tokens, at) {
				return true
			}
		}
	}
	return false
}

// findPhrase returns every token index where phrase starts.
func findPhrase(tokens []string, phrase string) []int {
	words := strings.Fields(phrase)
	if len(words) == 0 {
		return nil
	}
	var hits []int
	for i := 0; i+len(words) <= len(tokens); i++ {
		match := true
		for j, w := range words {
			if tokens[i+j] != w {
				match = false
				break
			}
		}
		if match {
			hits = append(hits, i)
		}
	}
	return hits
}

func negated(tokens []string, at int) bool {
	for _, neg := range negators {
		words := strings.Fields(neg)
		start := at - len(words)
		if start < 0 {
			continue
		}
		match := true
		for j, w := range words {
			if tokens[start+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// tokenize lower-cases text and splits it on anything that is not a letter,
// digit or apostrophe. Curly apostrophes are folded to ASCII.
func tokenize(text string) []string {
	text = strings.ToLower(strings.ReplaceAll(text, "’", "'"))
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// #endregion matching
