package sink

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devblac/event-listener/internal/event"
)

func u64(v uint64) *uint64 { return &v }

func str(s string) *string { return &s }

func sampleRecord() event.Record {
	return event.Record{
		Timestamp:       time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
		ChainID:         u64(137),
		ChainName:       "Polygon",
		BlockNumber:     101,
		TransactionHash: "0x0000000000000000000000000000000000000000000000000000000000abc123",
		LogIndex:        7,
		ContractAddress: "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
		Topics: []string{
			"0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef",
			"0x0000000000000000000000000000000000000000000000000000000000000001",
		},
		Data:           "0xdeadbeef",
		EventSignature: str("Transfer(address,address,uint256)"),
	}
}

func TestConsoleFormats(t *testing.T) {
	minimal := event.Record{
		Timestamp:       time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
		ChainName:       "Custom",
		TransactionHash: "0x0000000000000000000000000000000000000000000000000000000000000000",
		ContractAddress: "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
		Topics:          []string{},
		Data:            "0x",
	}

	tests := []struct {
		golden string
		format string
		rec    event.Record
	}{
		{"console_pretty", FormatPretty, sampleRecord()},
		{"console_pretty_minimal", FormatPretty, minimal},
		{"console_compact", FormatCompact, sampleRecord()},
		{"console_json", FormatJSON, sampleRecord()},
	}

	g := goldie.New(t)
	for _, tt := range tests {
		t.Run(tt.golden, func(t *testing.T) {
			var buf bytes.Buffer
			c, err := NewConsole(&buf, tt.format)
			require.NoError(t, err)
			require.NoError(t, c.Send(context.Background(), tt.rec))
			g.Assert(t, tt.golden, buf.Bytes())
		})
	}
}

func TestConsoleDefaultsToPretty(t *testing.T) {
	var buf bytes.Buffer
	c, err := NewConsole(&buf, "")
	require.NoError(t, err)
	require.NoError(t, c.Send(context.Background(), sampleRecord()))
	assert.Contains(t, buf.String(), "Event Detected!")
}

func TestConsoleRejectsUnknownFormat(t *testing.T) {
	_, err := NewConsole(&bytes.Buffer{}, "yaml")
	assert.Error(t, err)
}

func TestConsoleCompactShortValues(t *testing.T) {
	rec := sampleRecord()
	rec.TransactionHash = "0xabc"
	c, err := NewConsole(&bytes.Buffer{}, FormatCompact)
	require.NoError(t, err)
	out, err := c.Render(rec)
	require.NoError(t, err)
	assert.Contains(t, string(out), "| Tx 0xabc |")
}

func TestConsolePrettyIncludesDecodedArgs(t *testing.T) {
	rec := sampleRecord()
	rec.Args = map[string]any{"value": "1000", "from": "0x01"}
	c, err := NewConsole(&bytes.Buffer{}, FormatPretty)
	require.NoError(t, err)
	out, err := c.Render(rec)
	require.NoError(t, err)
	assert.Contains(t, string(out), "║ from: 0x01\n║ value: 1000\n")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestConsoleWriteErrorIsReturned(t *testing.T) {
	c, err := NewConsole(failingWriter{}, FormatJSON)
	require.NoError(t, err)
	assert.Error(t, c.Send(context.Background(), sampleRecord()))
}
