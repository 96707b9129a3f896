package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectKey(t *testing.T) {
	// The key is order-independent so a direct pair maps onto a single
	// unique row.
	assert.Equal(t, directKey("alice", "bob"), directKey("bob", "alice"))
	assert.Equal(t, "alice:bob", directKey("bob", "alice"))
	assert.Equal(t, "alice:alice", directKey("alice", "alice"))
	assert.NotEqual(t, directKey("alice", "bob"), directKey("alice", "carol"))
}
