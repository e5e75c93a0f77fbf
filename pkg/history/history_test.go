package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordDoesNotBlockWhenQueueFull(t *testing.T) {
	r := &Recorder{events: make(chan event, 1)}

	r.Record(1, "/api/v1/profile", "GET", 200, "")
	// Queue is now full; this must return immediately rather than block,
	// since nothing is draining it in this test.
	r.Record(2, "/api/v1/profile", "GET", 200, "")

	assert.Len(t, r.events, 1)
}
