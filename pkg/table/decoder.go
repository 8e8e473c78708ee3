package table

import (
	"bytes"
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"cagedfetch/pkg/errors"
	"cagedfetch/pkg/logger"
)

// Scheme is one (delimiter, encoding) attempt. A nil Charset means the
// bytes are expected to be valid UTF-8 already.
type Scheme struct {
	Name      string
	Delimiter rune
	Charset   *charmap.Charmap
}

// DefaultSchemes returns the canonical attempt order for CAGED releases:
// the dataset's delimiter and text encoding vary by year, so decoding is
// trial-and-error in a fixed order, first success wins.
func DefaultSchemes() []Scheme {
	return []Scheme{
		{Name: "latin1/semicolon", Delimiter: ';', Charset: charmap.ISO8859_1},
		{Name: "utf8/comma", Delimiter: ',', Charset: nil},
		{Name: "windows1252/semicolon", Delimiter: ';', Charset: charmap.Windows1252},
	}
}

// Decoder parses delimited text under an ordered list of schemes.
type Decoder struct {
	schemes []Scheme
	logger  logger.Logger
}

// NewDecoder creates a decoder with the canonical scheme order.
func NewDecoder(log logger.Logger) *Decoder {
	return NewDecoderWithSchemes(DefaultSchemes(), log)
}

// NewDecoderWithSchemes creates a decoder with a custom attempt order.
func NewDecoderWithSchemes(schemes []Scheme, log logger.Logger) *Decoder {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Decoder{schemes: schemes, logger: log}
}

// DecodeFile reads and decodes the file at path, keying the table as key.
func (d *Decoder) DecodeFile(path, key string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Decode("read", path, err)
	}
	return d.Decode(data, key)
}

// Decode tries each scheme in order and returns the first successful parse.
// Individual malformed rows are dropped; a scheme fails only when the bytes
// cannot be decoded or the header does not parse under its delimiter.
func (d *Decoder) Decode(data []byte, key string) (*Table, error) {
	var attemptErrs []error
	for _, scheme := range d.schemes {
		t, err := parseScheme(data, scheme)
		if err != nil {
			d.logger.WithFields(map[string]interface{}{
				"table":  key,
				"scheme": scheme.Name,
			}).WithError(err).Warn("Decode attempt failed, trying next scheme")
			attemptErrs = append(attemptErrs, fmt.Errorf("%s: %w", scheme.Name, err))
			continue
		}

		t.Key = key
		t.Scheme = scheme.Name
		d.logger.WithFields(map[string]interface{}{
			"table":   key,
			"scheme":  scheme.Name,
			"rows":    t.RowCount(),
			"columns": t.ColumnCount(),
			"dropped": t.Dropped,
		}).Info("Table decoded")
		return t, nil
	}

	return nil, errors.Decode("parse", key, stderrors.Join(attemptErrs...))
}

// parseScheme decodes the charset then parses the delimited text, skipping
// rows whose field count does not match the header.
func parseScheme(data []byte, scheme Scheme) (*Table, error) {
	text, err := decodeCharset(data, scheme.Charset)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(bytes.NewReader(text))
	r.Comma = scheme.Delimiter
	r.LazyQuotes = true
	r.FieldsPerRecord = 0 // lock every row to the header's width

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("delimiter %q yields a single column", scheme.Delimiter)
	}

	t := &Table{Header: header}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		var parseErr *csv.ParseError
		if stderrors.As(err, &parseErr) {
			t.Dropped++
			continue
		}
		if err != nil {
			return nil, err
		}
		t.Rows = append(t.Rows, record)
	}

	return t, nil
}

func decodeCharset(data []byte, cm *charmap.Charmap) ([]byte, error) {
	if cm == nil {
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("content is not valid UTF-8")
		}
		return data, nil
	}
	return cm.NewDecoder().Bytes(data)
}
