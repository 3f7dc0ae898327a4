// Package query narrows a parsed document with a jq expression before
// records are extracted from it.
package query

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/itchyny/gojq"

	"github.com/mcncl/jsonflat/internal/errors"
	"github.com/mcncl/jsonflat/internal/models"
)

const compiledCacheSize = 128

// Engine runs jq expressions against parsed documents. Compiled expressions
// are kept in a small LRU so repeated selections skip parsing.
type Engine struct {
	compiled *lru.Cache[string, *gojq.Code]
	paths    *lru.Cache[string, pathQuery]
}

// NewEngine creates a new query engine.
func NewEngine() *Engine {
	// lru.New only fails for a non-positive size.
	compiled, err := lru.New[string, *gojq.Code](compiledCacheSize)
	if err != nil {
		panic(err)
	}
	paths, err := lru.New[string, pathQuery](compiledCacheSize)
	if err != nil {
		panic(err)
	}
	return &Engine{compiled: compiled, paths: paths}
}

// Compile parses and compiles expression, returning an ErrInvalidOptions
// config error when it is not valid jq.
func (e *Engine) Compile(expression string) (*gojq.Code, error) {
	if code, ok := e.compiled.Get(expression); ok {
		return code, nil
	}

	q, err := gojq.Parse(expression)
	if err != nil {
		var parseErr *gojq.ParseError
		if stderrors.As(err, &parseErr) {
			return nil, errors.NewConfigError(
				fmt.Sprintf("invalid jq expression at position %d: %v", parseErr.Offset, err),
				errors.ErrInvalidOptions)
		}
		return nil, errors.NewConfigError("invalid jq expression: "+err.Error(), errors.ErrInvalidOptions)
	}

	code, err := gojq.Compile(q)
	if err != nil {
		return nil, errors.NewConfigError("failed to compile jq expression: "+err.Error(), errors.ErrInvalidOptions)
	}

	e.compiled.Add(expression, code)
	return code, nil
}

// Select runs expression against root. A single output becomes the new
// root; several outputs are collected into an array. Null outputs are
// dropped. Outputs that are parts of root keep the document's key order;
// objects built by jq come back with their keys sorted.
func (e *Engine) Select(ctx context.Context, root models.Value, expression string) (models.Value, error) {
	code, err := e.Compile(expression)
	if err != nil {
		return models.Value{}, err
	}

	input := toAny(root)
	raw, err := run(ctx, code, input)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.Value{}, ctxErr
		}
		return models.Value{}, errors.NewConfigError(formatJQError(err), errors.ErrInvalidOptions)
	}
	located := e.locate(ctx, root, input, expression, raw)

	var outputs []models.Value
	for i, v := range raw {
		if v == nil {
			continue
		}
		val := fromAny(v)
		if i < len(located) && located[i].Kind() == val.Kind() {
			val = located[i]
		}
		outputs = append(outputs, val)
	}

	switch len(outputs) {
	case 0:
		return models.Value{}, errors.NewExtractionError(
			fmt.Sprintf("select expression %q produced no output", expression), errors.ErrNoData)
	case 1:
		return outputs[0], nil
	default:
		return models.ArrayValue(outputs), nil
	}
}

// run collects every output of code. A halt without a value ends the run
// early; any other error is returned with the outputs produced before it.
func run(ctx context.Context, code *gojq.Code, input any) ([]any, error) {
	var outputs []any
	iter := code.RunWithContext(ctx, input)
	for {
		v, ok := iter.Next()
		if !ok {
			return outputs, nil
		}
		if err, isErr := v.(error); isErr {
			var haltErr *gojq.HaltError
			if stderrors.As(err, &haltErr) && haltErr.Value() == nil {
				return outputs, nil
			}
			return outputs, err
		}
		outputs = append(outputs, v)
	}
}

// pathQuery locates the outputs of an expression inside its input.
type pathQuery struct {
	code *gojq.Code // path(expression), or nil when that does not compile
	// collect is set for expressions of the form [inner]; code then locates
	// the outputs of inner, which become the items of the single output.
	collect bool
}

// locate resolves the paths of the raw outputs against root, so selected
// objects are the document's own ordered objects. jq cannot give a path for
// a value it constructs; the result covers only the outputs before the first
// such value.
func (e *Engine) locate(ctx context.Context, root models.Value, input any, expression string, raw []any) []models.Value {
	pq := e.pathQuery(expression)
	if pq.code == nil {
		return nil
	}
	paths, err := run(ctx, pq.code, input)

	if pq.collect {
		if err != nil || len(raw) != 1 {
			return nil
		}
		items, ok := raw[0].([]any)
		if !ok || len(items) != len(paths) {
			return nil
		}
		located := resolve(root, paths)
		if len(located) != len(paths) {
			return nil
		}
		return []models.Value{models.ArrayValue(located)}
	}

	if (err == nil && len(paths) != len(raw)) || len(paths) > len(raw) {
		return nil
	}
	return resolve(root, paths)
}

// resolve follows each path through root, stopping at the first output that
// is not a path into it.
func resolve(root models.Value, paths []any) []models.Value {
	located := make([]models.Value, 0, len(paths))
	for _, p := range paths {
		steps, ok := p.([]any)
		if !ok {
			break
		}
		v, ok := getPath(root, steps)
		if !ok {
			break
		}
		located = append(located, v)
	}
	return located
}

func (e *Engine) pathQuery(expression string) pathQuery {
	if pq, ok := e.paths.Get(expression); ok {
		return pq
	}

	var pq pathQuery
	target := expression
	if q, err := gojq.Parse(expression); err == nil {
		if inner := collected(q); inner != nil {
			target, pq.collect = inner.String(), true
		}
	}
	// The newline ends any trailing comment before the closing paren.
	if q, err := gojq.Parse("path(" + target + "\n)"); err == nil {
		pq.code, _ = gojq.Compile(q)
	}
	e.paths.Add(expression, pq)
	return pq
}

// collected returns inner when q is exactly [inner].
func collected(q *gojq.Query) *gojq.Query {
	if q.Meta != nil || len(q.Imports) > 0 || len(q.FuncDefs) > 0 || q.Left != nil || q.Right != nil || q.Term == nil {
		return nil
	}
	t := q.Term
	if t.Type != gojq.TermTypeArray || len(t.SuffixList) > 0 || t.Array == nil || t.Array.Query == nil {
		return nil
	}
	return t.Array.Query
}

// getPath follows a jq path through v. Missing keys and indexes resolve to
// null like they do in jq; a step of the wrong type fails.
func getPath(v models.Value, steps []any) (models.Value, bool) {
	for _, step := range steps {
		if f, ok := step.(float64); ok && f == float64(int(f)) {
			step = int(f)
		}
		if v.IsNull() {
			continue
		}
		switch s := step.(type) {
		case string:
			if !v.IsObject() {
				return models.Value{}, false
			}
			next, ok := v.Object().Get(s)
			if !ok {
				next = models.NullValue()
			}
			v = next
		case int:
			if !v.IsArray() {
				return models.Value{}, false
			}
			items := v.Array()
			if s < 0 {
				s += len(items)
			}
			if s < 0 || s >= len(items) {
				v = models.NullValue()
				continue
			}
			v = items[s]
		default:
			return models.Value{}, false
		}
	}
	return v, true
}

// formatJQError adds a hint to the most common runtime errors.
func formatJQError(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "cannot iterate over: null"):
		return msg + " (the path may not exist in this document)"
	case strings.Contains(msg, "object") && strings.Contains(msg, "cannot be iterated"):
		return msg + " (expected array but got object, try removing '[]')"
	case strings.Contains(msg, "array") && strings.Contains(msg, "cannot be indexed"):
		return msg + " (expected object but got array, try adding '[]')"
	}
	return msg
}

// toAny converts a value into the types gojq operates on.
func toAny(v models.Value) any {
	switch v.Kind() {
	case models.KindBool:
		return v.Bool()
	case models.KindNumber:
		return numberToAny(v.Number())
	case models.KindString:
		return v.Str()
	case models.KindArray:
		items := v.Array()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = toAny(item)
		}
		return out
	case models.KindObject:
		out := make(map[string]any, v.Object().Len())
		v.Object().Range(func(key string, val models.Value) bool {
			out[key] = toAny(val)
			return true
		})
		return out
	default:
		return nil
	}
}

func numberToAny(n json.Number) any {
	if i, err := strconv.Atoi(n.String()); err == nil {
		return i
	}
	if b, ok := new(big.Int).SetString(n.String(), 10); ok {
		return b
	}
	f, err := n.Float64()
	if err != nil {
		return n.String()
	}
	return f
}

// fromAny converts a gojq result back into a value.
func fromAny(v any) models.Value {
	switch val := v.(type) {
	case nil:
		return models.NullValue()
	case bool:
		return models.BoolValue(val)
	case int:
		return models.NumberValue(json.Number(strconv.Itoa(val)))
	case float64:
		return models.NumberValue(json.Number(strconv.FormatFloat(val, 'g', -1, 64)))
	case *big.Int:
		return models.NumberValue(json.Number(val.String()))
	case string:
		return models.StringValue(val)
	case []any:
		items := make([]models.Value, len(val))
		for i, item := range val {
			items[i] = fromAny(item)
		}
		return models.ArrayValue(items)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := models.NewObject()
		for _, k := range keys {
			obj.Set(k, fromAny(val[k]))
		}
		return models.ObjectValue(obj)
	default:
		return models.StringValue(fmt.Sprint(val))
	}
}
