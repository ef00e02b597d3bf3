package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpen_InvalidDSN(t *testing.T) {
	_, err := Open(context.Background(), "postgres://%zz", 1)
	assert.Error(t, err)
}
