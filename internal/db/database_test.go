package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpenRequiresDSN(t *testing.T) {
	db, err := Open("")
	assert.Error(t, err)
	assert.Nil(t, db)
}

func TestCloseNil(t *testing.T) {
	assert.NoError(t, Close(nil))
}
