package entities

import (
	"strings"
	"unicode"
)

// VoiceType names a synthesis voice. Values follow the Kokoro naming scheme:
// the first letter is the accent (a = American, b = British) and the second
// letter the gender (f or m).
type VoiceType string

// Gender of a voice as returned by scenario refinement
type Gender string

const (
	GenderFemale  Gender = "female"
	GenderMale    Gender = "male"
	GenderUnknown Gender = ""
)

// DefaultVoice is used when no gender could be determined
const DefaultVoice VoiceType = "af_heart"

var (
	FemaleVoices = []VoiceType{"af_heart", "af_bella", "af_nicole", "bf_emma"}
	MaleVoices   = []VoiceType{"am_adam", "am_michael", "bm_george", "bm_lewis"}
)

// IsValid reports whether v is one of the known voices
func (v VoiceType) IsValid() bool {
	for _, known := range append(append([]VoiceType{}, FemaleVoices...), MaleVoices...) {
		if v == known {
			return true
		}
	}
	return false
}

// Gender derives the gender from the voice name
func (v VoiceType) Gender() Gender {
	if len(v) < 2 {
		return GenderUnknown
	}
	switch v[1] {
	case 'f':
		return GenderFemale
	case 'm':
		return GenderMale
	}
	return GenderUnknown
}

var genderWords = map[string]Gender{
	"f": GenderFemale, "female": GenderFemale, "woman": GenderFemale,
	"women": GenderFemale, "girl": GenderFemale, "lady": GenderFemale,
	"m": GenderMale, "male": GenderMale, "man": GenderMale,
	"men": GenderMale, "boy": GenderMale, "gentleman": GenderMale,
}

// ParseGender normalises free-form model output such as "Female" or "male
// voice". Only whole words count, so "human" or "manager" stay unknown. The
// first gendered word wins.
func ParseGender(s string) Gender {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if g, ok := genderWords[w]; ok {
			return g
		}
	}
	return GenderUnknown
}

// VoiceForGender picks a voice of the given gender. pick receives the number
// of candidates and returns an index; out of range indexes are clamped.
func VoiceForGender(g Gender, pick func(n int) int) VoiceType {
	var candidates []VoiceType
	switch g {
	case GenderFemale:
		candidates = FemaleVoices
	case GenderMale:
		candidates = MaleVoices
	default:
		return DefaultVoice
	}

	i := 0
	if pick != nil {
		i = pick(len(candidates))
	}
	if i < 0 || i >= len(candidates) {
		i = 0
	}
	return candidates[i]
}
