// Package errors renders errors for the different consumers of the calculator.
//
// Domain error types stay in their own packages (tax, loader). This package
// only decides how they are presented:
//   - TextFormatter: messages for the command line, with the offending source
//     line when the error carries a position
//   - JSONFormatter: structured errors for the web API
package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robinvdvleuten/cgt/loader"
	"github.com/robinvdvleuten/cgt/tax"
)

// Formatter formats errors for output in different formats.
type Formatter interface {
	// Format formats a single error.
	Format(err error) string

	// FormatAll formats multiple errors.
	FormatAll(errs []error) string
}

type positioned interface {
	error
	GetPosition() loader.Position
}

// position finds the first error in the chain that knows where it came from.
func position(err error) (positioned, bool) {
	var p positioned
	if stderrors.As(err, &p) {
		return p, true
	}
	return nil, false
}

// TextFormatter formats errors for command-line output.
type TextFormatter struct {
	sources  map[string][]byte
	readFile bool
	context  int
}

// TextFormatterOption is an option for configuring TextFormatter.
type TextFormatterOption func(*TextFormatter)

// WithSource registers the content of filename, used to show the lines
// around an error.
func WithSource(filename string, content []byte) TextFormatterOption {
	return func(tf *TextFormatter) {
		tf.sources[filename] = content
	}
}

// WithFileSource reads sources from disk when they were not registered.
func WithFileSource() TextFormatterOption {
	return func(tf *TextFormatter) {
		tf.readFile = true
	}
}

// WithContextLines sets how many lines are shown before the error line.
func WithContextLines(n int) TextFormatterOption {
	return func(tf *TextFormatter) {
		tf.context = n
	}
}

// NewTextFormatter creates a new text formatter.
func NewTextFormatter(opts ...TextFormatterOption) *TextFormatter {
	tf := &TextFormatter{sources: map[string][]byte{}, context: 2}
	for _, opt := range opts {
		opt(tf)
	}
	return tf
}

// Format formats a single error. Errors with a position get the source
// lines around it when the source is known.
func (tf *TextFormatter) Format(err error) string {
	if err == nil {
		return ""
	}

	p, ok := position(err)
	if !ok {
		return err.Error()
	}

	source := tf.source(p.GetPosition().Filename)
	if source == nil {
		return err.Error()
	}
	return tf.formatWithSourceContext(p.GetPosition(), err.Error(), source)
}

// FormatAll formats multiple errors, separating them with blank lines.
func (tf *TextFormatter) FormatAll(errs []error) string {
	if len(errs) == 0 {
		return ""
	}

	var buf bytes.Buffer
	for i, err := range errs {
		buf.WriteString(tf.Format(err))
		if i < len(errs)-1 {
			buf.WriteString("\n\n")
		}
	}
	return buf.String()
}

func (tf *TextFormatter) source(filename string) []byte {
	if content, ok := tf.sources[filename]; ok {
		return content
	}
	if !tf.readFile || filename == "" || filename == loader.StdinFilename {
		return nil
	}

	content, err := os.ReadFile(filename)
	if err != nil {
		return nil
	}
	tf.sources[filename] = content
	return content
}

// formatWithSourceContext writes message followed by the lines leading up to
// the error and the one after it. A caret marks the column when it is known.
func (tf *TextFormatter) formatWithSourceContext(pos loader.Position, message string, source []byte) string {
	var buf bytes.Buffer
	buf.WriteString(message)
	buf.WriteString("\n\n")

	lines := strings.Split(strings.TrimRight(string(source), "\n"), "\n")
	start := max(pos.Line-1-tf.context, 0)
	end := min(pos.Line, len(lines)-1)

	for i := start; i <= end; i++ {
		buf.WriteString("   ")
		buf.WriteString(lines[i])
		buf.WriteByte('\n')

		if i == pos.Line-1 && pos.Column > 0 {
			buf.WriteString("   ")
			buf.WriteString(strings.Repeat(" ", pos.Column-1))
			buf.WriteString("^\n")
		}
	}

	return buf.String()
}

// JSONFormatter formats errors as JSON.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// ErrorJSON represents an error in JSON format.
type ErrorJSON struct {
	Type     string         `json:"type"`
	Message  string         `json:"message"`
	Position *PositionJSON  `json:"position,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
}

// PositionJSON represents a file position in JSON format.
type PositionJSON struct {
	Filename string `json:"filename"`
	Line     int    `json:"line"`
	Column   int    `json:"column,omitempty"`
}

// Format formats a single error as JSON.
func (jf *JSONFormatter) Format(err error) string {
	data, _ := json.Marshal(jf.ToJSON(err))
	return string(data)
}

// FormatAll formats multiple errors as a JSON array.
func (jf *JSONFormatter) FormatAll(errs []error) string {
	data, _ := json.MarshalIndent(jf.FormatAllToSlice(errs), "", "  ")
	return string(data)
}

// FormatAllToSlice returns errors as a slice of ErrorJSON structs.
func (jf *JSONFormatter) FormatAllToSlice(errs []error) []ErrorJSON {
	result := make([]ErrorJSON, 0, len(errs))
	for _, err := range errs {
		result = append(result, jf.ToJSON(err))
	}
	return result
}

// ToJSON converts an error to ErrorJSON. The type and details describe the
// most specific error found in the chain.
func (jf *JSONFormatter) ToJSON(err error) ErrorJSON {
	errJSON := ErrorJSON{
		Type:    fmt.Sprintf("%T", err),
		Message: err.Error(),
	}

	if p, ok := position(err); ok {
		pos := p.GetPosition()
		errJSON.Position = &PositionJSON{
			Filename: pos.Filename,
			Line:     pos.Line,
			Column:   pos.Column,
		}
	}

	details := map[string]any{}

	var parseErr *loader.ParseError
	if stderrors.As(err, &parseErr) && parseErr.Field != "" {
		details["field"] = parseErr.Field
	}

	var (
		invalid  *tax.InvalidTransactionError
		negative *tax.NegativeHoldingsError
		year     *tax.UnsupportedTaxYearError
		rule     *tax.UnknownRuleError
	)
	switch {
	case stderrors.As(err, &invalid):
		errJSON.Type = fmt.Sprintf("%T", invalid)
		details["type"] = string(invalid.Type)
		if invalid.Asset != "" {
			details["asset"] = invalid.Asset
		}
		if !invalid.Timestamp.IsZero() {
			details["timestamp"] = invalid.Timestamp.Format(time.RFC3339)
		}
	case stderrors.As(err, &negative):
		errJSON.Type = fmt.Sprintf("%T", negative)
		details["asset"] = negative.Asset
		details["quantity"] = negative.Quantity.String()
		details["date"] = negative.Timestamp.Format(time.DateOnly)
	case stderrors.As(err, &year):
		errJSON.Type = fmt.Sprintf("%T", year)
		details["year"] = year.Year
	case stderrors.As(err, &rule):
		errJSON.Type = fmt.Sprintf("%T", rule)
		details["rule"] = string(rule.Rule)
	case parseErr != nil:
		errJSON.Type = fmt.Sprintf("%T", parseErr)
	}

	if len(details) > 0 {
		errJSON.Details = details
	}
	return errJSON
}
