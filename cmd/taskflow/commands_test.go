package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	assert.Equal(t, float64(3), parseValue("3"))
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, map[string]any{"a": "b"}, parseValue(`{"a":"b"}`))
	assert.Equal(t, "plain text", parseValue("plain text"))
}

func TestAppPrint(t *testing.T) {
	var buf bytes.Buffer

	a := &app{out: &buf, format: "yaml"}
	require.NoError(t, a.print(map[string]any{"healthy": true}))
	assert.Equal(t, "healthy: true\n", buf.String())

	buf.Reset()
	a.format = "json"
	require.NoError(t, a.print(map[string]any{"healthy": true}))
	assert.JSONEq(t, `{"healthy": true}`, buf.String())

	a.format = "xml"
	assert.Error(t, a.print(1))
}
