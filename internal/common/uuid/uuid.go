package uuid

import (
	"github.com/google/uuid"
)

type UUID = uuid.UUID

var Nil = uuid.Nil

// New returns a time ordered (version 7) UUID, so primary keys insert in
// creation order.
func New() UUID {
	u, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return u
}

func Parse(s string) (UUID, error) {
	return uuid.Parse(s)
}

func MustParse(s string) UUID {
	return uuid.MustParse(s)
}
