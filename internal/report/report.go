// Package report prints prediction results to the console.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/maauso/emotion-cli/internal/emotion"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ruleWidth is the length of the horizontal rules around the text block.
const ruleWidth = 35

// Theme defines the color scheme for the text report.
type Theme struct {
	Accent lipgloss.Color // Rules and keys
	Value  lipgloss.Color // Result values
}

// DefaultTheme is the default cyan theme.
var DefaultTheme = Theme{
	Accent: lipgloss.Color("#5fd7ff"),
	Value:  lipgloss.Color("#ffffff"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Rule  lipgloss.Style
	Key   lipgloss.Style
	Value lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Rule:  lipgloss.NewStyle().Foreground(t.Accent),
		Key:   lipgloss.NewStyle().Bold(true).Foreground(t.Accent),
		Value: lipgloss.NewStyle().Bold(true).Foreground(t.Value),
	}
}

// Result is the JSON form of a prediction.
type Result struct {
	Audio         string    `json:"audio"`
	Label         string    `json:"label"`
	Index         int       `json:"index"`
	Confidence    float64   `json:"confidence"`
	Probabilities []float32 `json:"probabilities"`
}

type errorResult struct {
	Audio string `json:"audio"`
	Error string `json:"error"`
}

// Printer writes predictions and prediction errors in one format.
type Printer struct {
	w      io.Writer
	format string
	styles Styles
}

// NewPrinter creates a Printer. Unknown formats fall back to text.
func NewPrinter(w io.Writer, format string) *Printer {
	if format != FormatJSON {
		format = FormatText
	}
	return &Printer{w: w, format: format, styles: NewStyles(DefaultTheme)}
}

// DisplayName returns the file name shown for an audio location.
func DisplayName(location string) string {
	return filepath.Base(location)
}

// Prediction prints the result for the audio at location.
func (p *Printer) Prediction(location string, pred emotion.Prediction) error {
	if p.format == FormatJSON {
		return p.writeJSON(Result{
			Audio:         DisplayName(location),
			Label:         pred.Label,
			Index:         pred.Index,
			Confidence:    pred.Confidence,
			Probabilities: pred.Probabilities,
		})
	}

	_, err := io.WriteString(p.w, p.Render(location, pred))
	return err
}

// Render returns the bordered text block for a prediction.
func (p *Printer) Render(location string, pred emotion.Prediction) string {
	rule := p.styles.Rule.Render(strings.Repeat(lipgloss.DoubleBorder().Top, ruleWidth))
	line := func(icon, key, value string) string {
		return icon + " " + p.styles.Key.Render(key+":") + " " + p.styles.Value.Render(value)
	}

	lines := []string{
		"",
		rule,
		line("🎤", "AUDIO", DisplayName(location)),
		line("🧠", "RESULT", pred.DisplayLabel()),
		line("📊", "CONFIDENCE", fmt.Sprintf("%.2f%%", pred.Confidence)),
		rule,
	}
	return strings.Join(lines, "\n") + "\n"
}

// Error prints a failed prediction as a single user-facing message.
func (p *Printer) Error(location string, err error) error {
	if p.format == FormatJSON {
		return p.writeJSON(errorResult{Audio: DisplayName(location), Error: err.Error()})
	}
	_, werr := fmt.Fprintf(p.w, "Error processing file: %v\n", err)
	return werr
}

func (p *Printer) writeJSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
