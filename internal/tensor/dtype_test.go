package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataTypeSize(t *testing.T) {
	assert.Equal(t, 4, Float32.Size())
	assert.Equal(t, 8, Int64.Size())
	assert.Equal(t, 2, Float16.Size())
	assert.Equal(t, 1, Bool.Size())
	assert.Equal(t, 0, Undefined.Size())
	assert.Equal(t, 0, String.Size())
}

func TestDataTypeRoundTrip(t *testing.T) {
	for dt := Undefined; dt <= String; dt++ {
		parsed, err := ParseDataType(dt.String())
		require.NoError(t, err)
		assert.Equal(t, dt, parsed)
	}
}

func TestParseDataTypeAliases(t *testing.T) {
	dt, err := ParseDataType(" Double ")
	require.NoError(t, err)
	assert.Equal(t, Float64, dt)

	_, err = ParseDataType("complex128")
	assert.Error(t, err)
}

func TestDataTypeUnmarshalText(t *testing.T) {
	var dt DataType
	require.NoError(t, dt.UnmarshalText([]byte("int32")))
	assert.Equal(t, Int32, dt)
	assert.Error(t, dt.UnmarshalText([]byte("nope")))
}

func TestDeviceParseAndString(t *testing.T) {
	d, err := ParseDevice("gpu")
	require.NoError(t, err)
	assert.Equal(t, CUDA, d)

	_, err = ParseDevice("tpu")
	assert.Error(t, err)

	assert.Equal(t, "CPU:0", DeviceOption{}.String())
	assert.Equal(t, "CUDA:1", DeviceOption{Device: CUDA, DeviceID: 1}.String())
}
