// Package output renders gate results for the terminal.
//
// Table output is styled with lipgloss; JSON and YAML output are plain
// documents meant for scripts. Styling is dropped automatically when the
// writer is not a terminal.
//
// Errors always go to the error writer. Confirmations and notices follow
// the result in table output and move to the error writer for JSON and
// YAML, so the result stream stays parseable.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"stagegate/internal/stage"
)

// Supported formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// ANSI 256 colors.
const (
	colorGreen = "42"
	colorCyan  = "117"
	colorDim   = "241"
	colorRed   = "196"
	colorTitle = "205"
)

// TitleFunc returns the display title of a stage.
type TitleFunc func(stage.Stage) string

// Printer writes gate results in the configured format.
type Printer struct {
	out      io.Writer
	errOut   io.Writer
	format   string
	color    bool
	renderer *lipgloss.Renderer
}

// NewPrinter creates a table [Printer] writing results to stdout and
// errors to stderr.
func NewPrinter() *Printer {
	return NewPrinterWithWriters(os.Stdout, os.Stderr)
}

// NewPrinterWithWriter creates a table [Printer] writing everything to w.
func NewPrinterWithWriter(w io.Writer) *Printer {
	return NewPrinterWithWriters(w, w)
}

// NewPrinterWithWriters creates a table [Printer] writing results to w and
// errors to errW.
func NewPrinterWithWriters(w, errW io.Writer) *Printer {
	return &Printer{
		out:      w,
		errOut:   errW,
		format:   FormatTable,
		color:    true,
		renderer: lipgloss.NewRenderer(w),
	}
}

// SetFormat selects the output format.
func (p *Printer) SetFormat(format string) error {
	switch format {
	case FormatTable, FormatJSON, FormatYAML:
		p.format = format
		return nil
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// Format returns the selected output format.
func (p *Printer) Format() string {
	return p.format
}

// SetColor enables or disables styling in table output.
func (p *Printer) SetColor(enabled bool) {
	p.color = enabled
}

func (p *Printer) style(color string) lipgloss.Style {
	s := p.renderer.NewStyle()
	if p.color && color != "" {
		s = s.Foreground(lipgloss.Color(color))
	}
	return s
}

func (p *Printer) statusStyle(st stage.Status) lipgloss.Style {
	switch st {
	case stage.StatusCompleted:
		return p.style(colorGreen)
	case stage.StatusAvailable:
		return p.style(colorCyan).Bold(p.color)
	default:
		return p.style(colorDim)
	}
}

func statusIcon(st stage.Status) string {
	switch st {
	case stage.StatusCompleted:
		return "✓"
	case stage.StatusAvailable:
		return "▶"
	default:
		return "🔒"
	}
}

func titleOrDefault(title TitleFunc) TitleFunc {
	if title != nil {
		return title
	}
	return stage.Stage.Title
}

// PrintState writes the full pipeline state.
//
// Structured formats emit a stage-to-status mapping, the same shape the
// backend status endpoint serves.
func (p *Printer) PrintState(st stage.State, title TitleFunc) error {
	entries := st.Ordered()
	if p.format != FormatTable {
		doc := make(map[string]string, len(entries))
		for _, e := range entries {
			doc[string(e.Stage)] = string(e.Status)
		}
		return p.encode(doc)
	}

	title = titleOrDefault(title)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(p.style(colorDim)).
		Headers("#", "STAGE", "STATUS").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.style(colorTitle).Bold(p.color).Padding(0, 1)
			}
			if col == 2 && row >= 0 && row < len(entries) {
				return p.statusStyle(entries[row].Status).Padding(0, 1)
			}
			return p.renderer.NewStyle().Padding(0, 1)
		})
	for i, e := range entries {
		t.Row(strconv.Itoa(i+1), title(e.Stage), statusIcon(e.Status)+" "+string(e.Status))
	}

	_, err := fmt.Fprintln(p.out, t.Render())
	return err
}

type nextDoc struct {
	Next     string `json:"next,omitempty" yaml:"next,omitempty"`
	Complete bool   `json:"complete" yaml:"complete"`
}

// PrintNext writes the first available stage, or a completion notice when
// every stage is completed.
func (p *Printer) PrintNext(st stage.State, title TitleFunc) error {
	next, ok := st.Next()
	if p.format != FormatTable {
		doc := nextDoc{Complete: st.Completed()}
		if ok {
			doc.Next = string(next)
		}
		return p.encode(doc)
	}

	switch {
	case ok:
		_, err := fmt.Fprintf(p.out, "%s %s (%s)\n",
			p.statusStyle(stage.StatusAvailable).Render("next:"), titleOrDefault(title)(next), next)
		return err
	case st.Completed():
		_, err := fmt.Fprintln(p.out, p.style(colorGreen).Render("pipeline complete"))
		return err
	default:
		_, err := fmt.Fprintln(p.out, p.style(colorDim).Render("no stage available"))
		return err
	}
}

// EvidenceRow describes the evidence held for one stage.
type EvidenceRow struct {
	Stage   stage.Stage `json:"stage" yaml:"stage"`
	Key     string      `json:"key" yaml:"key"`
	Present bool        `json:"present" yaml:"present"`
}

// PrintEvidence writes one row per stage.
func (p *Printer) PrintEvidence(rows []EvidenceRow, title TitleFunc) error {
	if p.format != FormatTable {
		return p.encode(rows)
	}

	title = titleOrDefault(title)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(p.style(colorDim)).
		Headers("STAGE", "KEY", "EVIDENCE").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.style(colorTitle).Bold(p.color).Padding(0, 1)
			}
			if col == 2 && row >= 0 && row < len(rows) && rows[row].Present {
				return p.style(colorGreen).Padding(0, 1)
			}
			return p.renderer.NewStyle().Padding(0, 1)
		})
	for _, r := range rows {
		present := "-"
		if r.Present {
			present = "present"
		}
		t.Row(title(r.Stage), r.Key, present)
	}

	_, err := fmt.Fprintln(p.out, t.Render())
	return err
}

// Change describes a stage whose status moved between two resolutions.
type Change struct {
	Stage stage.Stage  `json:"stage" yaml:"stage"`
	From  stage.Status `json:"from" yaml:"from"`
	To    stage.Status `json:"to" yaml:"to"`
}

// Diff lists the stages whose status differs between prev and cur, in
// pipeline order.
func Diff(prev, cur stage.State) []Change {
	var out []Change
	prevEntries := prev.Ordered()
	for i, e := range cur.Ordered() {
		if from := prevEntries[i].Status; from != e.Status {
			out = append(out, Change{Stage: e.Stage, From: from, To: e.Status})
		}
	}
	return out
}

type changeDoc struct {
	Version uint64   `json:"version" yaml:"version"`
	Changes []Change `json:"changes" yaml:"changes"`
}

// PrintChanges writes the status changes of one state version.
func (p *Printer) PrintChanges(version uint64, changes []Change, title TitleFunc) error {
	if p.format != FormatTable {
		return p.encode(changeDoc{Version: version, Changes: changes})
	}

	title = titleOrDefault(title)
	for _, c := range changes {
		_, err := fmt.Fprintf(p.out, "%s %s: %s → %s\n",
			p.style(colorDim).Render(fmt.Sprintf("[v%d]", version)),
			title(c.Stage),
			p.statusStyle(c.From).Render(string(c.From)),
			p.statusStyle(c.To).Render(string(c.To)))
		if err != nil {
			return err
		}
	}
	return nil
}

// Success writes a styled confirmation line.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.notices(), p.style(colorGreen).Render("✓ "+fmt.Sprintf(format, args...)))
}

// Error writes a styled error line to the error writer.
func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintln(p.errOut, p.style(colorRed).Render("✗ "+fmt.Sprintf(format, args...)))
}

// Info writes a dim informational line.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintln(p.notices(), p.style(colorDim).Render(fmt.Sprintf(format, args...)))
}

func (p *Printer) notices() io.Writer {
	if p.format == FormatTable {
		return p.out
	}
	return p.errOut
}

func (p *Printer) encode(v any) error {
	switch p.format {
	case FormatYAML:
		enc := yaml.NewEncoder(p.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	}
}
