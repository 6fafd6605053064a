package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/devblac/event-listener/internal/event"
)

const (
	FormatPretty  = "pretty"
	FormatCompact = "compact"
	FormatJSON    = "json"

	compactPrefix = 10
)

const border = "════════════════════════════════════════════════════════════"

var prettyTemplate = "\n╔" + border + "\n" +
	"║ Event Detected!\n" +
	"║ Time: {{ts .Timestamp}}\n" +
	"║ Chain: {{.ChainName}} (ID: {{chain_id .ChainID}})\n" +
	"║ Block: {{.BlockNumber}}\n" +
	"║ Transaction: {{.TransactionHash}}\n" +
	"║ Log Index: {{.LogIndex}}\n" +
	"║ Contract: {{.ContractAddress}}\n" +
	"{{with .EventSignature}}║ Event: {{.}}\n{{end}}" +
	"╠" + border + "\n" +
	"{{if .Topics}}║ Topics:\n{{range $i, $t := .Topics}}║   [{{$i}}] {{$t}}\n{{end}}{{end}}" +
	"{{if has_data .Data}}║ Data: {{.Data}}\n{{end}}" +
	"{{range $k, $v := .Args}}║ {{$k}}: {{$v}}\n{{end}}" +
	"╚" + border + "\n\n"

// Console renders records to a writer, normally stdout.
type Console struct {
	w      io.Writer
	format string
	render *template.Template
	mu     sync.Mutex
}

// NewConsole builds a console sink for one of the pretty, compact or json formats.
func NewConsole(w io.Writer, format string) (*Console, error) {
	format = strings.ToLower(format)
	if format == "" {
		format = FormatPretty
	}
	c := &Console{w: w, format: format}
	switch format {
	case FormatPretty:
		t, err := parseTemplate(prettyTemplate)
		if err != nil {
			return nil, err
		}
		c.render = t
	case FormatCompact, FormatJSON:
	default:
		return nil, fmt.Errorf("unsupported console format %q", format)
	}
	return c, nil
}

func (c *Console) Name() string { return "console" }

// Send writes one rendered record. Write errors are returned to the dispatcher, which logs them.
func (c *Console) Send(_ context.Context, rec event.Record) error {
	out, err := c.Render(rec)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.w.Write(out); err != nil {
		return fmt.Errorf("console write: %w", err)
	}
	return nil
}

// Render formats rec without writing it.
func (c *Console) Render(rec event.Record) ([]byte, error) {
	switch c.format {
	case FormatJSON:
		line, err := rec.MarshalLine()
		if err != nil {
			return nil, fmt.Errorf("marshal record: %w", err)
		}
		return append(line, '\n'), nil
	case FormatCompact:
		return []byte(fmt.Sprintf("[%s] Block %d | Tx %s | Contract %s | Topics: %d\n",
			rec.Timestamp.Format(time.RFC3339),
			rec.BlockNumber,
			prefix(rec.TransactionHash, compactPrefix),
			prefix(rec.ContractAddress, compactPrefix),
			len(rec.Topics),
		)), nil
	default:
		var buf bytes.Buffer
		if err := c.render.Execute(&buf, rec); err != nil {
			return nil, fmt.Errorf("render template: %w", err)
		}
		return buf.Bytes(), nil
	}
}

func parseTemplate(tmpl string) (*template.Template, error) {
	funcs := template.FuncMap{
		"ts": func(t time.Time) string {
			return t.Format(time.RFC3339)
		},
		"chain_id": func(id *uint64) uint64 {
			if id == nil {
				return 0
			}
			return *id
		},
		"has_data": func(data string) bool {
			return data != "" && data != "0x"
		},
	}
	return template.New("pretty").Funcs(funcs).Parse(tmpl)
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
