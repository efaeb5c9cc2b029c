package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okabe-project/lifx-go/pkg/log"
)

func writeTestLog(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.lifxlog")
	logger, err := log.NewFileLogger(path)
	require.NoError(t, err)

	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{
			Timestamp:  base,
			SessionID:  "session-aaaa",
			Direction:  log.DirectionOut,
			Layer:      log.LayerWire,
			Category:   log.CategoryPacket,
			RemoteAddr: "192.168.1.255:56700",
			Packet:     &log.PacketEvent{Type: 2, TypeName: "GetService", Source: 1234, Sequence: 1, Size: 36},
		},
		{
			Timestamp:  base.Add(50 * time.Millisecond),
			SessionID:  "session-aaaa",
			Direction:  log.DirectionIn,
			Layer:      log.LayerWire,
			Category:   log.CategoryPacket,
			RemoteAddr: "192.168.1.20:56700",
			Target:     "d0:73:d5:01:02:03",
			Packet:     &log.PacketEvent{Type: 3, TypeName: "StateService", Source: 1234, Sequence: 1, Size: 41},
		},
		{
			Timestamp: base.Add(100 * time.Millisecond),
			SessionID: "session-aaaa",
			Direction: log.DirectionOut,
			Layer:     log.LayerSession,
			Category:  log.CategoryState,
			StateChange: &log.StateChangeEvent{
				Entity:   log.StateEntityDiscovery,
				OldState: "COLLECTING",
				NewState: "DONE",
				Reason:   "settled, 1 devices",
			},
		},
		{
			Timestamp: base.Add(200 * time.Millisecond),
			SessionID: "session-aaaa",
			Direction: log.DirectionIn,
			Layer:     log.LayerWire,
			Category:  log.CategoryError,
			Error:     &log.ErrorEventData{Layer: log.LayerWire, Message: "truncated packet", Context: "decode"},
		},
	}
	for _, e := range events {
		logger.Log(e)
	}
	require.NoError(t, logger.Close())
	return path
}

func TestRunView(t *testing.T) {
	path := writeTestLog(t)

	var buf bytes.Buffer
	require.NoError(t, RunView(path, ViewFilter{}, &buf))

	out := buf.String()
	assert.Contains(t, out, "GetService")
	assert.Contains(t, out, "StateService")
	assert.Contains(t, out, "d0:73:d5:01:02:03")
	assert.Contains(t, out, "COLLECTING -> DONE")
	assert.Contains(t, out, "truncated packet")
}

func TestRunViewFiltered(t *testing.T) {
	path := writeTestLog(t)

	dir := log.DirectionIn
	cat := log.CategoryPacket
	var buf bytes.Buffer
	require.NoError(t, RunView(path, ViewFilter{Direction: &dir, Category: &cat}, &buf))

	out := buf.String()
	assert.Contains(t, out, "StateService")
	assert.NotContains(t, out, "GetService")
	assert.NotContains(t, out, "truncated packet")
}

func TestRunViewByTarget(t *testing.T) {
	path := writeTestLog(t)

	var buf bytes.Buffer
	require.NoError(t, RunView(path, ViewFilter{Target: "d0:73:d5:01:02:03"}, &buf))

	assert.Contains(t, buf.String(), "StateService")
	assert.NotContains(t, buf.String(), "GetService")
}

func TestRunExportJSONL(t *testing.T) {
	path := writeTestLog(t)
	out := filepath.Join(t.TempDir(), "out.jsonl")

	require.NoError(t, RunExport(path, "jsonl", out))

	data := readFile(t, out)
	lines := strings.Split(strings.TrimSpace(data), "\n")
	assert.Len(t, lines, 4)
}

func TestRunExportCSV(t *testing.T) {
	path := writeTestLog(t)
	out := filepath.Join(t.TempDir(), "out.csv")

	require.NoError(t, RunExport(path, "csv", out))

	data := readFile(t, out)
	lines := strings.Split(strings.TrimSpace(data), "\n")
	require.Len(t, lines, 5) // header + 4 events
	assert.Contains(t, lines[0], "timestamp")
	assert.Contains(t, data, "StateService")
}

func TestRunExportUnknownFormat(t *testing.T) {
	path := writeTestLog(t)
	err := RunExport(path, "xml", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestRunFilter(t *testing.T) {
	path := writeTestLog(t)
	out := filepath.Join(t.TempDir(), "filtered.lifxlog")

	require.NoError(t, RunFilter(path, FilterOptions{
		Output:   out,
		Category: "packet",
	}))

	reader, err := log.NewReader(out)
	require.NoError(t, err)
	defer reader.Close()

	count := 0
	for {
		event, err := reader.Next()
		if err != nil {
			break
		}
		assert.Equal(t, log.CategoryPacket, event.Category)
		count++
	}
	assert.Equal(t, 2, count)
}

func TestRunFilterBadTime(t *testing.T) {
	path := writeTestLog(t)
	err := RunFilter(path, FilterOptions{Output: filepath.Join(t.TempDir(), "o"), TimeStart: "yesterday"})
	require.Error(t, err)
}

func TestRunStats(t *testing.T) {
	path := writeTestLog(t)

	var buf bytes.Buffer
	require.NoError(t, RunStats(path, &buf))

	out := buf.String()
	assert.Contains(t, out, "Total Events: 4")
	assert.Contains(t, out, "WIRE:")
	assert.Contains(t, out, "GetService:")
	assert.Contains(t, out, "Devices: 1")
	assert.Contains(t, out, "Errors: 1")
}

func TestParseFlags(t *testing.T) {
	l, err := ParseLayerFlag("Wire")
	require.NoError(t, err)
	assert.Equal(t, log.LayerWire, l)
	_, err = ParseLayerFlag("bogus")
	require.Error(t, err)

	d, err := ParseDirectionFlag("OUT")
	require.NoError(t, err)
	assert.Equal(t, log.DirectionOut, d)
	_, err = ParseDirectionFlag("sideways")
	require.Error(t, err)

	c, err := ParseCategoryFlag("error")
	require.NoError(t, err)
	assert.Equal(t, log.CategoryError, c)
	_, err = ParseCategoryFlag("bogus")
	require.Error(t, err)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
