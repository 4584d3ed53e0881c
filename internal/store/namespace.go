package store

import "strings"

// Namespace partitions the flat key space of the store into independent
// categories. Key construction goes through the namespace so the prefix
// strings never leak into callers, and entries of one category can never
// collide with another.
type Namespace string

const (
	// NamespaceHistory holds images cached for history entries; its keys
	// carry no prefix.
	NamespaceHistory Namespace = ""

	// NamespaceLibrary holds the user-curated reference library.
	NamespaceLibrary Namespace = "library_"

	// NamespacePersona holds persona photos, keyed {id}_{position} under
	// the prefix.
	NamespacePersona Namespace = "persona_"
)

// Key builds the full store key for an id inside the namespace.
func (n Namespace) Key(id string) string {
	return string(n) + id
}

// ID strips the namespace prefix from a full store key.
func (n Namespace) ID(key string) string {
	return strings.TrimPrefix(key, string(n))
}

// Contains reports whether a full store key belongs to this namespace.
// History owns the unprefixed keys, so it matches only keys that belong
// to no other namespace.
func (n Namespace) Contains(key string) bool {
	if n == NamespaceHistory {
		return !NamespaceLibrary.Contains(key) && !NamespacePersona.Contains(key)
	}
	return strings.HasPrefix(key, string(n))
}

// PersonaPosition is one of the three camera angles of a persona bundle.
type PersonaPosition string

const (
	PositionLeft  PersonaPosition = "left"
	PositionFront PersonaPosition = "front"
	PositionRight PersonaPosition = "right"
)

// PersonaPositions lists the three angles every complete persona carries.
func PersonaPositions() []PersonaPosition {
	return []PersonaPosition{PositionLeft, PositionFront, PositionRight}
}

// PersonaPhotoKey builds the store key of one persona photo.
func PersonaPhotoKey(personaID string, pos PersonaPosition) string {
	return NamespacePersona.Key(personaID + "_" + string(pos))
}
