package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, TraceLevel, ParseLogLevel("TRACE"))
	assert.Equal(t, WarnLevel, ParseLogLevel("warning"))
	assert.Equal(t, ErrorLevel, ParseLogLevel(" err "))
	assert.Equal(t, InfoLevel, ParseLogLevel("bogus"))
	assert.Equal(t, "debug", DebugLevel.String())
}

func TestZerologLogger_SubsystemAndFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewTestLogger(buf)

	child := log.WithSubsystem("credential").WithSubsystem("cache")
	child.Info("loaded", String("id", "abc"), Int("n", 2), Err(errors.New("boom")))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "credential.cache", lines[0]["module"])
	assert.Equal(t, "abc", lines[0]["id"])
	assert.Equal(t, float64(2), lines[0]["n"])
	assert.Equal(t, "boom", lines[0]["error"])
	assert.Equal(t, "info", lines[0]["level"])
}

func TestZerologLogger_LevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewZerologLogger(&Config{Level: WarnLevel, Format: JSONFormat, Outputs: []io.Writer{buf}})

	l.Info("dropped")
	l.Warn("kept")

	assert.False(t, l.IsLevelEnabled(InfoLevel))
	assert.True(t, l.IsLevelEnabled(ErrorLevel))
	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "kept", lines[0]["message"])
}

func TestGatedWriter_BuffersUntilOpen(t *testing.T) {
	var buf bytes.Buffer
	gw := NewGatedWriter(GatedWriterConfig{Underlying: &buf, InitialState: GateClosed})

	_, err := gw.Write([]byte("one\n"))
	require.NoError(t, err)
	assert.Zero(t, buf.Len())
	assert.Equal(t, 4, gw.BufferedSize())

	require.NoError(t, gw.OpenGate())
	assert.Equal(t, "one\n", buf.String())
	assert.Zero(t, gw.BufferedSize())

	_, _ = gw.Write([]byte("two\n"))
	assert.Equal(t, "one\ntwo\n", buf.String())
}

func TestGatedWriter_MaxBufferDropsOldest(t *testing.T) {
	var buf bytes.Buffer
	gw := NewGatedWriter(GatedWriterConfig{Underlying: &buf, MaxBufferSize: 6})

	_, _ = gw.Write([]byte("abcd"))
	_, _ = gw.Write([]byte("efgh"))
	require.NoError(t, gw.OpenGate())
	assert.Equal(t, "cdefgh", buf.String())
}

func TestGatedWriter_Discard(t *testing.T) {
	var buf bytes.Buffer
	gw := NewGatedWriter(GatedWriterConfig{Underlying: &buf})
	_, _ = gw.Write([]byte("secret"))
	gw.Discard()
	require.NoError(t, gw.OpenGate())
	assert.Empty(t, buf.String())
}

func TestHCLogAdapter(t *testing.T) {
	buf := &bytes.Buffer{}
	adapter := NewHCLogAdapter(NewTestLogger(buf))

	named := adapter.Named("physical").With("backend", "inmem")
	named.Warn("slow put", "key", "appcred/id/1", 42)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "physical", lines[0]["module"])
	assert.Equal(t, "inmem", lines[0]["backend"])
	assert.Equal(t, "appcred/id/1", lines[0]["key"])
	assert.Equal(t, "physical", named.Name())
	assert.Equal(t, hclog.Trace, adapter.GetLevel())
}

func TestPubSubAdapter(t *testing.T) {
	buf := &bytes.Buffer{}
	p := PubSubAdapter{Logger: NewTestLogger(buf).Logger}
	p.Errorf("handler for %q failed", "topic")
	p.Warningf("slow")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, `handler for "topic" failed`, lines[0]["message"])
	assert.Equal(t, "warn", lines[1]["level"])
}
