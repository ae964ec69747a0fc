package tarot

import (
	"fmt"
	"strings"

	"github.com/arcanelabs/tarot-backend/internal/types"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

type SignificatorPriority string

const (
	PriorityQuestionFirst    SignificatorPriority = "question_first"
	PriorityPersonalityFirst SignificatorPriority = "personality_first"
	PriorityZodiacFirst      SignificatorPriority = "zodiac_first"
)

// QuerentProfile is the optional profile supplied with a reading request.
// Pointer fields distinguish "absent" from zero values.
type QuerentProfile struct {
	Age             *int       `json:"age,omitempty"`
	Gender          *Gender    `json:"gender,omitempty"`
	ZodiacSign      string     `json:"zodiac_sign,omitempty"`
	PersonalityType types.Suit `json:"personality_type,omitempty"`
}

type SignificatorChoice struct {
	CourtLevel string
	Suit       types.Suit
	CardNameEN string
	Reason     string
}

var domainSuits = map[string]types.Suit{
	"love":            types.SuitCups,
	"career":          types.SuitWands,
	"health":          types.SuitPentacles,
	"finance":         types.SuitPentacles,
	"personal_growth": types.SuitSwords,
	"general":         types.SuitWands,
}

var zodiacSuits = map[string]types.Suit{
	"aries": types.SuitWands, "leo": types.SuitWands, "sagittarius": types.SuitWands,
	"cancer": types.SuitCups, "scorpio": types.SuitCups, "pisces": types.SuitCups,
	"gemini": types.SuitSwords, "libra": types.SuitSwords, "aquarius": types.SuitSwords,
	"taurus": types.SuitPentacles, "virgo": types.SuitPentacles, "capricorn": types.SuitPentacles,
}

// DeriveSignificator picks the court card representing the querent. It is
// fully deterministic: the same profile, domain, and priority always yield
// the same card and the same reason string, so audit rows reproduce exactly.
func DeriveSignificator(profile QuerentProfile, questionDomain string, priority SignificatorPriority) SignificatorChoice {
	var reasons []string

	level := "King"
	switch {
	case profile.Age == nil || profile.Gender == nil:
		reasons = append(reasons, "court level: profile incomplete, defaulting to King")
	case *profile.Gender == GenderMale && *profile.Age < 40:
		level = "King"
		reasons = append(reasons, "court level: male under 40 -> King")
	case *profile.Gender == GenderMale:
		level = "Knight"
		reasons = append(reasons, "court level: male 40 or older -> Knight")
	case *profile.Gender == GenderFemale && *profile.Age < 40:
		level = "Page"
		reasons = append(reasons, "court level: female under 40 -> Page")
	case *profile.Gender == GenderFemale:
		level = "Queen"
		reasons = append(reasons, "court level: female 40 or older -> Queen")
	default:
		reasons = append(reasons, "court level: neutral default -> King")
	}

	fromQuestion := func() (types.Suit, string) {
		if s, ok := domainSuits[strings.ToLower(strings.TrimSpace(questionDomain))]; ok {
			return s, fmt.Sprintf("suit: question domain %s -> %s", questionDomain, s)
		}
		return "", ""
	}
	fromPersonality := func() (types.Suit, string) {
		switch profile.PersonalityType {
		case types.SuitWands, types.SuitCups, types.SuitSwords, types.SuitPentacles:
			return profile.PersonalityType, fmt.Sprintf("suit: personality type -> %s", profile.PersonalityType)
		}
		return "", ""
	}
	fromZodiac := func() (types.Suit, string) {
		if s, ok := zodiacSuits[strings.ToLower(strings.TrimSpace(profile.ZodiacSign))]; ok {
			return s, fmt.Sprintf("suit: zodiac %s -> %s", profile.ZodiacSign, s)
		}
		return "", ""
	}

	var order []func() (types.Suit, string)
	switch priority {
	case PriorityPersonalityFirst:
		order = []func() (types.Suit, string){fromPersonality, fromQuestion, fromZodiac}
	case PriorityZodiacFirst:
		order = []func() (types.Suit, string){fromZodiac, fromQuestion, fromPersonality}
	default:
		order = []func() (types.Suit, string){fromQuestion, fromPersonality, fromZodiac}
	}

	suit := types.SuitWands
	found := false
	for _, derive := range order {
		if s, why := derive(); s != "" {
			suit = s
			reasons = append(reasons, why)
			found = true
			break
		}
	}
	if !found {
		reasons = append(reasons, "suit: no signal available, defaulting to wands")
	}

	return SignificatorChoice{
		CourtLevel: level,
		Suit:       suit,
		CardNameEN: fmt.Sprintf("%s of %s", level, titleSuit(suit)),
		Reason:     strings.Join(reasons, "; "),
	}
}

// ResolveSignificator looks the derived court card up in the loaded deck,
// falling back to the King of Wands before giving up.
func ResolveSignificator(deck []*types.Card, choice SignificatorChoice) (*types.Card, error) {
	if c := findByName(deck, choice.CardNameEN); c != nil {
		return c, nil
	}
	if c := findByName(deck, "King of Wands"); c != nil {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrSignificatorMissing, choice.CardNameEN)
}

func findByName(deck []*types.Card, nameEN string) *types.Card {
	for _, c := range deck {
		if c != nil && c.CardNameEN == nameEN {
			return c
		}
	}
	return nil
}

func titleSuit(s types.Suit) string {
	switch s {
	case types.SuitWands:
		return "Wands"
	case types.SuitCups:
		return "Cups"
	case types.SuitSwords:
		return "Swords"
	case types.SuitPentacles:
		return "Pentacles"
	default:
		return string(s)
	}
}
