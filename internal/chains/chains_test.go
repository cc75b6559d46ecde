package chains

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestName(t *testing.T) {
	assert.Equal(t, "Base", Name(8453))
	assert.Equal(t, "Katana", Name(1002))
	assert.Equal(t, "Unknown", Name(10))
}

func TestParseIDs(t *testing.T) {
	ids, err := ParseIDs(" 1, 8453,,137 ")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 8453, 137}, ids)

	ids, err = ParseIDs("")
	require.NoError(t, err)
	assert.Nil(t, ids)

	_, err = ParseIDs("1,base")
	assert.Error(t, err)
}

func TestFilterSupported(t *testing.T) {
	assert.Equal(t, []int{1, 8453}, FilterSupported([]int{1, 10, 8453, 1}))
	assert.Empty(t, FilterSupported([]int{56}))
}
