package sandbox

import (
	"encoding/json"
	"strings"
)

// Result is the structured outcome of one execution. Failure is nil on
// success; Value then holds the JSON encoding of main()'s return value.
type Result struct {
	Value   json.RawMessage
	Stdout  string
	Failure *Error
}

// OK reports whether the execution succeeded.
func (r Result) OK() bool {
	return r.Failure == nil
}

func failure(err *Error) Result {
	return Result{Failure: err}
}

// payload is the document the harness writes between the markers.
type payload struct {
	Result json.RawMessage `json:"result"`
	Stdout string          `json:"stdout"`
	Error  *string         `json:"error"`
}

// Extract turns raw process output into a Result. The child's stdout is
// untrusted, so each step falls through to the next instead of assuming a
// well-formed payload:
//
//  1. a result marker pair, decoded as the harness payload
//  2. an error marker pair, decoded as {"error": ...}
//  3. anything on stderr
//  4. a generic "no result" failure
func Extract(outcome Outcome) Result {
	if body, ok := between(outcome.Stdout, ResultStartMarker, ResultEndMarker); ok {
		var p payload
		if err := json.Unmarshal([]byte(body), &p); err != nil {
			return failure(newError(KindExtraction, "Failed to parse execution result", err))
		}
		if p.Error != nil && *p.Error != "" {
			return failure(scriptFailure(*p.Error))
		}
		value := p.Result
		if len(value) == 0 {
			value = json.RawMessage("null")
		}
		return Result{Value: value, Stdout: p.Stdout}
	}

	if body, ok := between(outcome.Stdout, ErrorStartMarker, ErrorEndMarker); ok {
		var p payload
		if err := json.Unmarshal([]byte(body), &p); err != nil {
			return failure(newError(KindExtraction, "Script execution failed with parsing error", err))
		}
		message := "Script execution failed"
		if p.Error != nil && *p.Error != "" {
			message = *p.Error
		}
		return failure(scriptFailure(message))
	}

	if outcome.Stderr != "" {
		return failure(newError(KindScript, "Script execution error: "+outcome.Stderr, nil))
	}

	return failure(newError(KindExtraction, "Script execution failed - no result returned", nil))
}

func scriptFailure(message string) *Error {
	if strings.HasPrefix(message, serializationErrorPrefix) {
		return newError(KindSerialization, message, nil)
	}
	return newError(KindScript, message, nil)
}

// between returns the text strictly between the last start marker in s that
// is followed by an end marker, and the first end marker after it. The harness
// writes its payload last, so anything a script wrote to the real stdout
// earlier cannot shadow it; a trailing unterminated start marker falls back to
// the last complete pair.
func between(s, start, end string) (string, bool) {
	for {
		i := strings.LastIndex(s, start)
		if i < 0 {
			return "", false
		}
		rest := s[i+len(start):]
		if j := strings.Index(rest, end); j >= 0 {
			return rest[:j], true
		}
		s = s[:i]
	}
}
