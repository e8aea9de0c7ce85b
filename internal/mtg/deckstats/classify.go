package deckstats

import "strings"

// CardType is the single bucket a card is counted under.
type CardType string

// Card type buckets, in classification order.
const (
	TypeCreature     CardType = "Creature"
	TypePlaneswalker CardType = "Planeswalker"
	TypeInstant      CardType = "Instant"
	TypeSorcery      CardType = "Sorcery"
	TypeEnchantment  CardType = "Enchantment"
	TypeArtifact     CardType = "Artifact"
	TypeLand         CardType = "Land"
	TypeOther        CardType = "Other"
)

// classificationOrder is first-match-wins: an artifact creature is a
// Creature, an artifact land is an Artifact.
var classificationOrder = []CardType{
	TypeCreature,
	TypePlaneswalker,
	TypeInstant,
	TypeSorcery,
	TypeEnchantment,
	TypeArtifact,
	TypeLand,
}

// CardTypes lists every bucket in classification order, Other last.
func CardTypes() []CardType {
	return append(append([]CardType{}, classificationOrder...), TypeOther)
}

// Classify buckets a type line by its front face.
func Classify(typeLine string) CardType {
	lower := strings.ToLower(FrontFace(typeLine))
	for _, t := range classificationOrder {
		if strings.Contains(lower, strings.ToLower(string(t))) {
			return t
		}
	}
	return TypeOther
}

// IsBasicLand reports whether a type line describes a basic land.
func IsBasicLand(typeLine string) bool {
	lower := strings.ToLower(typeLine)
	return strings.Contains(lower, "basic") && strings.Contains(lower, "land")
}

// IsLand reports whether the front face's type line contains Land.
func IsLand(typeLine string) bool {
	return strings.Contains(strings.ToLower(FrontFace(typeLine)), "land")
}
