package ids

import "github.com/segmentio/ksuid"

// New returns a sortable, globally unique identifier for jobs and consumers.
func New() string {
	return ksuid.New().String()
}
