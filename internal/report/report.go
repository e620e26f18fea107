// Package report renders the outcome of a run for the invoking environment.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tupyy/ztp-bootstrap/internal/entity"
	"sigs.k8s.io/yaml"
)

const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

var ErrUnknownFormat = errors.New("unknown output format")

// ValidateFormat returns ErrUnknownFormat if Write cannot render format.
func ValidateFormat(format string) error {
	switch strings.ToLower(format) {
	case "", FormatYAML, FormatJSON:
		return nil
	default:
		return fmt.Errorf("%w '%s'. expected %s or %s", ErrUnknownFormat, format, FormatYAML, FormatJSON)
	}
}

// Write renders result in format. An empty format is yaml.
func Write(w io.Writer, result entity.EnrollmentResult, format string) error {
	var (
		data []byte
		err  error
	)

	switch strings.ToLower(format) {
	case "", FormatYAML:
		data, err = yaml.Marshal(result)
	case FormatJSON:
		data, err = json.MarshalIndent(result, "", "  ")
		data = append(data, '\n')
	default:
		return ValidateFormat(format)
	}

	if err != nil {
		return fmt.Errorf("cannot render result: %w", err)
	}

	_, err = w.Write(data)
	return err
}
