package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperationOf(t *testing.T) {
	assert.Equal(t, "select", operationOf("  SELECT id FROM stages WHERE id = $1"))
	assert.Equal(t, "insert", operationOf("\n\t\tINSERT INTO payments (id) VALUES ($1)"))
	assert.Equal(t, "query", operationOf(""))
}

func TestTruncateSQL(t *testing.T) {
	assert.Equal(t, "unknown", truncateSQL(""))
	long := strings.Repeat("x", 250)
	assert.Equal(t, strings.Repeat("x", 200)+"...", truncateSQL(long))
}
