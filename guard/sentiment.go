package guard

import "strings"

// polarity computes a crude lexicon-based sentiment score in [-1, 1].
// Negation words flip the sign of the following sentiment-bearing word.
// Text with no sentiment-bearing words scores 0.
func polarity(text string) float64 {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return 0
	}

	var sum, count float64
	negate := false
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:'\"()")
		if _, ok := negations[w]; ok {
			negate = true
			continue
		}
		score, ok := sentimentLexicon[w]
		if !ok {
			continue
		}
		if negate {
			score = -score
			negate = false
		}
		sum += score
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / count
}

var negations = map[string]struct{}{
	"not": {}, "no": {}, "never": {}, "don't": {}, "dont": {},
	"can't": {}, "cant": {}, "won't": {}, "wont": {}, "isn't": {},
	"isnt": {}, "doesn't": {}, "doesnt": {}, "neither": {}, "nor": {},
}

var sentimentLexicon = map[string]float64{
	// positive
	"good": 1, "great": 1, "excellent": 1, "helpful": 1, "love": 1,
	"like": 1, "thanks": 1, "thank": 1, "please": 1, "wonderful": 1,
	"amazing": 1, "awesome": 1, "clear": 1, "useful": 1, "nice": 1,
	"interesting": 1, "easy": 1, "fun": 1, "best": 1, "perfect": 1,

	// negative
	"bad": -1, "terrible": -1, "awful": -1, "hate": -1, "stupid": -1,
	"dumb": -1, "useless": -1, "worst": -1, "horrible": -1, "idiot": -1,
	"garbage": -1, "trash": -1, "sucks": -1, "suck": -1, "pathetic": -1,
	"worthless": -1, "disgusting": -1, "annoying": -1, "wrong": -1,
	"confusing": -1,
}
