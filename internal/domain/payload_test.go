package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToPayloadValueRoundTripsThroughDecodePayloadValue(t *testing.T) {
	seed := ToolSeed{ToolName: "sorter", UserIntent: "teach sorting", Algorithms: []string{"bubble", "merge"}}

	payload := ToPayloadValue(seed)
	require.NotNil(t, payload)

	var decoded ToolSeed
	require.NoError(t, DecodePayloadValue(payload, &decoded))
	assert.Equal(t, seed, decoded)
}

func TestDecodePayloadValueNilIsNoOp(t *testing.T) {
	var target ToolSeed
	require.NoError(t, DecodePayloadValue(nil, &target))
	assert.Equal(t, ToolSeed{}, target)
}

func TestPayloadStringAndBool(t *testing.T) {
	payload := map[string]any{"name": "value", "flag": true}
	assert.Equal(t, "value", PayloadString(payload, "name"))
	assert.Equal(t, "", PayloadString(payload, "missing"))
	assert.True(t, PayloadBool(payload, "flag"))
	assert.False(t, PayloadBool(payload, "missing"))
	assert.False(t, PayloadBool(nil, "flag"))
}
