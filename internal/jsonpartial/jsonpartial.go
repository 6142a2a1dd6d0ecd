// Package jsonpartial implements the fault-tolerant streaming JSON parser
// spec §9 requires for tool-call argument reconstruction (§4.D, §4.I): given
// a possibly-truncated JSON prefix, produce the best-effort complete JSON
// object representable from the safely-closed portion of it.
//
// There is no corpus library for this — tidwall/gjson requires syntactically
// valid JSON. This package supplies exactly the missing piece: repairing a
// truncated prefix into something gjson/encoding-json can then decode, so the
// rest of the module never hand-rolls JSON parsing itself.
package jsonpartial

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// frame tracks the grammar state of one open container while scanning.
type frame struct {
	kind  byte // '{' or '['
	state int
}

// object states.
const (
	objExpectKeyOrClose = iota
	objExpectColon
	objExpectValue
	objExpectCommaOrClose
)

// array states.
const (
	arrExpectValueOrClose = iota
	arrExpectCommaOrClose
)

// Repair takes a possibly-truncated JSON text fragment and returns the
// longest syntactically valid JSON value recoverable from its prefix, by
// truncating at the last point a complete value/container boundary was seen
// and closing whatever containers remained open there. Already-valid input
// is returned unchanged.
func Repair(raw string) string {
	if json.Valid([]byte(raw)) {
		return raw
	}

	var stack []frame
	inString := false
	escape := false
	isKey := false // true while the current string is an object key

	type safePoint struct {
		pos   int
		stack []frame
	}
	safe := safePoint{pos: 0, stack: nil}

	recordSafe := func(pos int) {
		snap := append([]frame(nil), stack...)
		safe = safePoint{pos: pos, stack: snap}
	}

	closeContainer := func() {
		if len(stack) == 0 {
			return
		}
		stack = stack[:len(stack)-1]
		if len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.kind == '{' {
				top.state = objExpectCommaOrClose
			} else {
				top.state = arrExpectCommaOrClose
			}
		}
	}

	n := len(raw)
	i := 0
	for i < n {
		c := raw[i]

		if inString {
			switch {
			case escape:
				escape = false
				i++
			case c == '\\':
				escape = true
				i++
			case c == '"':
				inString = false
				i++
				if !isKey {
					markValueComplete(stack)
					recordSafe(i)
				} else if len(stack) > 0 {
					stack[len(stack)-1].state = objExpectColon
				}
			default:
				i++
			}
			continue
		}

		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '"':
			isKey = len(stack) > 0 && stack[len(stack)-1].kind == '{' &&
				stack[len(stack)-1].state == objExpectKeyOrClose
			inString = true
			i++

		case c == '{':
			stack = append(stack, frame{kind: '{', state: objExpectKeyOrClose})
			i++

		case c == '[':
			stack = append(stack, frame{kind: '[', state: arrExpectValueOrClose})
			i++

		case c == '}' || c == ']':
			closeContainer()
			i++
			recordSafe(i)

		case c == ':':
			if len(stack) > 0 && stack[len(stack)-1].kind == '{' {
				stack[len(stack)-1].state = objExpectValue
			}
			i++

		case c == ',':
			if len(stack) > 0 {
				top := &stack[len(stack)-1]
				if top.kind == '{' {
					top.state = objExpectKeyOrClose
				} else {
					top.state = arrExpectValueOrClose
				}
			}
			i++

		default:
			start := i
			for i < n {
				cc := raw[i]
				if cc == '"' || cc == '{' || cc == '}' || cc == '[' || cc == ']' ||
					cc == ',' || cc == ':' || cc == ' ' || cc == '\t' || cc == '\n' || cc == '\r' {
					break
				}
				i++
			}
			token := raw[start:i]
			// A bare literal/number is only trustworthy as complete when
			// the stream has already moved past it (i < n); a token that
			// runs to the very end of the buffer may still be growing.
			if isCompleteLiteral(token) && i < n {
				markValueComplete(stack)
				recordSafe(i)
			}
		}
	}

	if safe.pos == 0 && len(safe.stack) == 0 {
		return "{}"
	}

	repaired := raw[:safe.pos]
	for k := len(safe.stack) - 1; k >= 0; k-- {
		if safe.stack[k].kind == '{' {
			repaired += "}"
		} else {
			repaired += "]"
		}
	}
	if !json.Valid([]byte(repaired)) {
		return "{}"
	}
	return repaired
}

func markValueComplete(stack []frame) {
	if len(stack) == 0 {
		return
	}
	top := &stack[len(stack)-1]
	if top.kind == '{' {
		top.state = objExpectCommaOrClose
	} else {
		top.state = arrExpectCommaOrClose
	}
}

func isCompleteLiteral(token string) bool {
	switch token {
	case "true", "false", "null":
		return true
	}
	return gjson.Valid(token) // numbers: delegate to gjson's grammar
}

// Accumulator concatenates progressive JSON fragments (toolcall_delta
// payloads, §4.D) and repairs+decodes the running buffer on demand.
type Accumulator struct {
	buf string
}

// NewAccumulator returns an empty Accumulator.
func NewAccumulator() *Accumulator { return &Accumulator{} }

// Append appends a raw JSON fragment to the running buffer.
func (a *Accumulator) Append(fragment string) {
	a.buf += fragment
}

// Raw returns the unrepaired concatenated buffer so far.
func (a *Accumulator) Raw() string {
	return a.buf
}

// Snapshot repairs and decodes the current buffer into a JSON object. An
// empty or whitespace-only buffer decodes to an empty object rather than an
// error, since "no arguments yet" is a normal streaming state.
func (a *Accumulator) Snapshot() (map[string]any, error) {
	repaired := Repair(a.buf)
	var out map[string]any
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return map[string]any{}, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// Freeze repairs+decodes the buffer and is intended for toolcall_end, where
// the result is treated as final rather than provisional. Behaviorally
// identical to Snapshot; kept distinct so call sites document intent.
func (a *Accumulator) Freeze() (map[string]any, error) {
	return a.Snapshot()
}
