package resource

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/Shopify/go-lua"
)

// Expression is a compiled resource requirement predicate.
//
// The predicate is written in Lua expression syntax and reads the fields of
// exactly one resource, named by the producing job id: "cpu.cores > 2" reads
// the records produced by job "cpu". A job id referenced this way must
// therefore be a valid Lua identifier. Parse validates the syntax and
// extracts the resource reference once; Evaluate runs the predicate against
// a single record with the record bound as a Lua table under the resource id.
//
// An Expression is immutable and safe for concurrent use.
type Expression struct {
	text       string
	resourceID string
}

// luaReserved lists identifiers that never count as resource references:
// Lua keywords plus the standard libraries expressions may call into.
var luaReserved = map[string]bool{
	"and": true, "or": true, "not": true, "true": true, "false": true,
	"nil": true, "if": true, "then": true, "else": true, "end": true,
	"function": true, "return": true,
	"string": true, "math": true, "table": true,
	"tostring": true, "tonumber": true,
}

// Parse compiles text into an Expression.
//
// Returns an *ExpressionError if:
//   - The text is blank
//   - The text is not a valid Lua expression
//   - The text references no resource, or more than one
func Parse(text string) (*Expression, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, &ExpressionError{Op: "parse", Text: text, Err: ErrEmptyExpression}
	}

	ids := referencedResources(trimmed)
	if len(ids) == 0 {
		return nil, &ExpressionError{Op: "parse", Text: trimmed, Err: ErrNoResourceReference}
	}
	if len(ids) > 1 {
		return nil, &ExpressionError{Op: "parse", Text: trimmed, Err: ErrMultipleResources}
	}

	// Compile-check now so malformed predicates fail at load time, not at
	// first readiness computation.
	l := lua.NewState()
	if err := lua.LoadString(l, "return ("+trimmed+")"); err != nil {
		return nil, &ExpressionError{Op: "parse", Text: trimmed, Err: err}
	}

	return &Expression{text: trimmed, resourceID: ids[0]}, nil
}

// Text returns the original expression source text.
func (e *Expression) Text() string {
	return e.text
}

// ResourceID returns the id of the job producing the resource this
// expression reads.
func (e *Expression) ResourceID() string {
	return e.resourceID
}

func (e *Expression) String() string {
	return e.text
}

// Evaluate runs the predicate against a single record.
//
// Numeric-looking field values are bound as Lua numbers, everything else as
// strings. A runtime failure (for example comparing a field the record does
// not carry) is returned as an *ExpressionError, never coerced to false.
func (e *Expression) Evaluate(rec Record) (bool, error) {
	l := lua.NewState()
	lua.OpenLibraries(l)

	pushRecord(l, rec)
	l.SetGlobal(e.resourceID)

	if err := lua.LoadString(l, "return ("+e.text+")"); err != nil {
		return false, &ExpressionError{Op: "parse", Text: e.text, Err: err}
	}
	if err := l.ProtectedCall(0, 1, 0); err != nil {
		return false, &ExpressionError{Op: "evaluate", Text: e.text, Err: err}
	}

	result := l.ToBoolean(-1)
	l.Pop(1)
	return result, nil
}

// EvaluateAny reports whether the predicate holds for at least one record.
//
// Records are evaluated in order; the first evaluation failure is returned
// as-is. Multi-record resources (per-device facts) are satisfied by any
// single matching record.
func (e *Expression) EvaluateAny(recs []Record) (bool, error) {
	for _, rec := range recs {
		ok, err := e.Evaluate(rec)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// pushRecord leaves a Lua table representing rec on top of the stack.
func pushRecord(l *lua.State, rec Record) {
	l.NewTable()
	for key, value := range rec {
		if n, err := strconv.ParseFloat(value, 64); err == nil {
			l.PushNumber(n)
		} else {
			l.PushString(value)
		}
		l.SetField(-2, key)
	}
}

// referencedResources scans text for identifiers used as table prefixes
// (identifier followed by '.'), skipping string literals and reserved names.
// The result preserves first-reference order and is deduplicated.
func referencedResources(text string) []string {
	var (
		ids      []string
		seen     = map[string]bool{}
		prevByte byte
	)
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		// Skip string literals.
		if r == '\'' || r == '"' {
			quote := r
			for i++; i < len(runes); i++ {
				if runes[i] == '\\' {
					i++
					continue
				}
				if runes[i] == quote {
					break
				}
			}
			prevByte = byte(quote)
			continue
		}

		if isIdentStart(r) {
			start := i
			for i < len(runes) && isIdentPart(runes[i]) {
				i++
			}
			name := string(runes[start:i])

			// Look ahead for the '.' marking a field access.
			j := i
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			followedByDot := j < len(runes) && runes[j] == '.'

			if followedByDot && prevByte != '.' && !luaReserved[name] && !seen[name] {
				seen[name] = true
				ids = append(ids, name)
			}
			prevByte = 'a'
			i--
			continue
		}

		if !unicode.IsSpace(r) {
			prevByte = byte(r)
		}
	}
	return ids
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
