package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/compozy/taskref/engine/resolver"
	"github.com/compozy/taskref/pkg/config"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// Output format constants
const (
	OutputFormatPretty = "pretty"
	OutputFormatJSON   = "json"
	OutputFormatText   = "text"
)

// printer writes command results in the configured format.
type printer struct {
	w      io.Writer
	format string
	color  bool
	styles styles
}

type styles struct {
	errorLabel   lipgloss.Style
	warningLabel lipgloss.Style
	heading      lipgloss.Style
	muted        lipgloss.Style
}

func newPrinter(w io.Writer, cfg *config.Config) *printer {
	p := &printer{w: w, format: cfg.CLI.Format, color: !cfg.CLI.NoColor && cfg.CLI.Format == OutputFormatPretty}
	if p.color {
		r := lipgloss.NewRenderer(w)
		p.styles = styles{
			errorLabel:   r.NewStyle().Foreground(lipgloss.Color("204")).Bold(true),
			warningLabel: r.NewStyle().Foreground(lipgloss.Color("192")).Bold(true),
			heading:      r.NewStyle().Bold(true),
			muted:        r.NewStyle().Foreground(lipgloss.Color("244")),
		}
	} else {
		plain := lipgloss.NewStyle()
		p.styles = styles{errorLabel: plain, warningLabel: plain, heading: plain, muted: plain}
	}
	return p
}

// JSON writes v as JSON. field, when set, selects a gjson path first.
func (p *printer) JSON(v any, field string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	if field != "" {
		res := gjson.GetBytes(data, field)
		if !res.Exists() {
			return fmt.Errorf("field %q not found", field)
		}
		data = []byte(res.Raw)
	}
	return p.raw(data)
}

func (p *printer) raw(data []byte) error {
	switch p.format {
	case OutputFormatJSON:
		data = pretty.Ugly(data)
	default:
		data = pretty.Pretty(data)
		if p.color {
			data = pretty.Color(data, nil)
		}
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	_, err := p.w.Write(data)
	return err
}

// Lines writes one entry per line in text mode, or a JSON array otherwise.
func (p *printer) Lines(lines []string) error {
	if p.format != OutputFormatText {
		if lines == nil {
			lines = []string{}
		}
		return p.JSON(lines, "")
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(p.w, line); err != nil {
			return err
		}
	}
	return nil
}

// Textf writes a line of free text regardless of format.
func (p *printer) Textf(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Diagnostic renders one diagnostic line.
func (p *printer) Diagnostic(d resolver.Diagnostic) string {
	label := p.styles.warningLabel.Render(string(d.Severity))
	if d.Severity == resolver.SeverityError {
		label = p.styles.errorLabel.Render(string(d.Severity))
	}
	var b strings.Builder
	b.WriteString(label)
	b.WriteString(" ")
	b.WriteString(p.styles.muted.Render("[" + string(d.Kind) + "]"))
	b.WriteString(" ")
	b.WriteString(d.Message)
	return b.String()
}

func (p *printer) Heading(text string) string {
	return p.styles.heading.Render(text)
}
