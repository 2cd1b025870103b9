package hll

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_divideBy8RoundUp(t *testing.T) {
	assert.Equal(t, 0, divideBy8RoundUp(0))
	assert.Equal(t, 1, divideBy8RoundUp(1))
	assert.Equal(t, 1, divideBy8RoundUp(7))
	assert.Equal(t, 1, divideBy8RoundUp(8))
	assert.Equal(t, 2, divideBy8RoundUp(9))
	assert.Equal(t, 8, divideBy8RoundUp(64))
	assert.Equal(t, 9, divideBy8RoundUp(65))
}
