package parser

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	stderrors "errors" // Standard errors package
	"github.com/mcncl/jsonflat/internal/errors" // Custom errors package
	"github.com/mcncl/jsonflat/internal/models"
)

// Parse reads exactly one JSON value from reader. Object keys keep the order
// in which they appear in the document; numbers are kept as json.Number.
func Parse(reader io.Reader) (models.IntermediateRepresentation, error) {
	decoder := json.NewDecoder(reader)
	decoder.UseNumber()

	tok, err := decoder.Token()
	if err != nil {
		if stderrors.Is(err, io.EOF) {
			return models.IntermediateRepresentation{}, errors.NewParsingError(
				"input is empty or contains only whitespace",
				fmt.Errorf("%w: %w", errors.ErrInvalidJSON, errors.ErrEmptyInput),
			)
		}
		return models.IntermediateRepresentation{}, wrapDecodeError(err)
	}

	root, err := decodeToken(decoder, tok)
	if err != nil {
		return models.IntermediateRepresentation{}, wrapDecodeError(err)
	}

	// Only whitespace may follow the root value.
	if _, err := decoder.Token(); !stderrors.Is(err, io.EOF) {
		if err != nil {
			return models.IntermediateRepresentation{}, errors.NewParsingError(
				"invalid trailing data after first JSON value",
				fmt.Errorf("%w: %v", errors.ErrInvalidJSON, err),
			)
		}
		return models.IntermediateRepresentation{}, errors.NewParsingError(
			"multiple JSON values found at the root",
			fmt.Errorf("%w: %w", errors.ErrInvalidJSON, errors.ErrMultipleJSON),
		)
	}

	return models.IntermediateRepresentation{Root: root}, nil
}

// decodeToken builds a value from tok, pulling further tokens from the
// decoder for arrays and objects.
func decodeToken(decoder *json.Decoder, tok json.Token) (models.Value, error) {
	switch t := tok.(type) {
	case nil:
		return models.NullValue(), nil
	case bool:
		return models.BoolValue(t), nil
	case json.Number:
		return models.NumberValue(t), nil
	case string:
		return models.StringValue(t), nil
	case json.Delim:
		switch t {
		case '{':
			obj := models.NewObject()
			for decoder.More() {
				keyTok, err := decoder.Token()
				if err != nil {
					return models.Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return models.Value{}, fmt.Errorf("expected object key, got %v", keyTok)
				}
				val, err := decodeNext(decoder)
				if err != nil {
					return models.Value{}, err
				}
				obj.Set(key, val)
			}
			if err := expectDelim(decoder, '}'); err != nil {
				return models.Value{}, err
			}
			return models.ObjectValue(obj), nil
		case '[':
			items := make([]models.Value, 0)
			for decoder.More() {
				val, err := decodeNext(decoder)
				if err != nil {
					return models.Value{}, err
				}
				items = append(items, val)
			}
			if err := expectDelim(decoder, ']'); err != nil {
				return models.Value{}, err
			}
			return models.ArrayValue(items), nil
		}
	}
	return models.Value{}, fmt.Errorf("unexpected json token: %v", tok)
}

func decodeNext(decoder *json.Decoder) (models.Value, error) {
	tok, err := decoder.Token()
	if err != nil {
		if stderrors.Is(err, io.EOF) {
			return models.Value{}, io.ErrUnexpectedEOF
		}
		return models.Value{}, err
	}
	return decodeToken(decoder, tok)
}

func expectDelim(decoder *json.Decoder, want json.Delim) error {
	tok, err := decoder.Token()
	if err != nil {
		if stderrors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

// wrapDecodeError maps decoder failures onto parsing errors wrapping ErrInvalidJSON.
func wrapDecodeError(err error) *errors.AppError {
	var syntaxError *json.SyntaxError
	if stderrors.As(err, &syntaxError) {
		return errors.NewParsingError(
			fmt.Sprintf("JSON syntax error at offset %d", syntaxError.Offset),
			fmt.Errorf("%w: %v", errors.ErrInvalidJSON, err),
		)
	}
	if stderrors.Is(err, io.ErrUnexpectedEOF) {
		return errors.NewParsingError("unexpected EOF in JSON input", errors.ErrInvalidJSON)
	}
	return errors.NewParsingError("failed to decode JSON", fmt.Errorf("%w: %v", errors.ErrInvalidJSON, err))
}

// ParseString parses JSON from a string
func ParseString(jsonString string) (models.IntermediateRepresentation, error) {
	if strings.TrimSpace(jsonString) == "" {
		return models.IntermediateRepresentation{}, errors.NewParsingError(
			"input string is empty or consists only of whitespace",
			fmt.Errorf("%w: %w", errors.ErrInvalidJSON, errors.ErrEmptyInput),
		)
	}
	return Parse(strings.NewReader(jsonString))
}

// ParseFile parses JSON from a file path
func ParseFile(filePath string) (models.IntermediateRepresentation, error) {
	if strings.TrimSpace(filePath) == "" {
		return models.IntermediateRepresentation{}, errors.NewInputError("file path is empty", errors.ErrInvalidFilePath)
	}
	data, err := ReadFile(filePath)
	if err != nil {
		return models.IntermediateRepresentation{}, err
	}
	return ParseString(string(data))
}

// ReadFile reads a JSON input file, mapping missing and empty files onto
// input errors.
func ReadFile(filePath string) ([]byte, error) {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewInputError(
				fmt.Sprintf("file '%s' not found", filePath),
				errors.ErrFileNotFound,
			)
		}
		return nil, errors.NewInputError(
			fmt.Sprintf("failed to open file '%s'", filePath),
			err,
		)
	}
	defer func() {
		if err := file.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing file: %v\n", err)
		}
	}()

	stat, err := file.Stat()
	if err != nil {
		return nil, errors.NewInputError(
			fmt.Sprintf("failed to get file stats for '%s'", filePath),
			err,
		)
	}
	if stat.Size() == 0 {
		return nil, errors.NewInputError(
			fmt.Sprintf("input file '%s' is empty", filePath),
			errors.ErrFileEmpty,
		)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.NewInputError(
			fmt.Sprintf("failed to read file '%s'", filePath),
			err,
		)
	}
	return data, nil
}
