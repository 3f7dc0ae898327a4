// Package schema validates API request bodies against embedded JSON Schemas.
package schema

import (
	"bytes"
	"embed"
	stderrors "errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Names of the embedded request schemas.
const (
	ConvertRequest = "convert-request"
	CountRequest   = "count-request"
)

// printer renders validation messages in English.
var printer = message.NewPrinter(language.English)

// Validator holds the compiled request schemas.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator compiles every embedded schema.
func NewValidator() (*Validator, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("reading embedded schemas: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		data, err := schemaFS.ReadFile(path.Join("schemas", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading schema %s: %w", entry.Name(), err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("parsing schema %s: %w", entry.Name(), err)
		}
		if err := compiler.AddResource(entry.Name(), doc); err != nil {
			return nil, fmt.Errorf("adding schema resource %s: %w", entry.Name(), err)
		}
		names = append(names, entry.Name())
	}

	v := &Validator{schemas: make(map[string]*jsonschema.Schema, len(names))}
	for _, name := range names {
		compiled, err := compiler.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("compiling schema %s: %w", name, err)
		}
		v.schemas[strings.TrimSuffix(name, ".json")] = compiled
	}
	return v, nil
}

// Validate checks data against the named schema. It returns nil when the
// document is valid and one message per violation otherwise, sorted by
// location.
func (v *Validator) Validate(name string, data []byte) []string {
	s, ok := v.schemas[name]
	if !ok {
		return []string{fmt.Sprintf("unknown schema %q", name)}
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return []string{"request body is not valid JSON: " + err.Error()}
	}

	err = s.Validate(doc)
	if err == nil {
		return nil
	}

	var validationErr *jsonschema.ValidationError
	if !stderrors.As(err, &validationErr) {
		return []string{err.Error()}
	}

	seen := make(map[string]bool)
	var details []string
	collectErrors(validationErr, seen, &details)
	sort.Strings(details)
	return details
}

// collectErrors gathers the leaf errors, those without causes.
func collectErrors(err *jsonschema.ValidationError, seen map[string]bool, details *[]string) {
	if err.ErrorKind != nil && len(err.Causes) == 0 {
		msg := err.ErrorKind.LocalizedString(printer)
		if len(err.InstanceLocation) > 0 {
			msg = "/" + strings.Join(err.InstanceLocation, "/") + ": " + msg
		}
		if !seen[msg] {
			seen[msg] = true
			*details = append(*details, msg)
		}
	}
	for _, cause := range err.Causes {
		collectErrors(cause, seen, details)
	}
}
