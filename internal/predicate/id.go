package predicate

import "github.com/google/uuid"

const idPrefix = "pred_"

// NewID returns a time-ordered unique predicate identifier.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return idPrefix + id.String()
}
