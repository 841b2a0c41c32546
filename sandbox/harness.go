package sandbox

import (
	"encoding/base64"
	"strings"
)

// Marker pairs that frame the structured payload on stdout.
const (
	ResultStartMarker = "__RESULT_START__"
	ResultEndMarker   = "__RESULT_END__"
	ErrorStartMarker  = "__ERROR_START__"
	ErrorEndMarker    = "__ERROR_END__"
)

// serializationErrorPrefix starts the harness message for a return value
// json cannot encode.
const serializationErrorPrefix = "main() function must return JSON-serializable data"

const sourcePlaceholder = "@@SOURCE@@"

// harnessTemplate has exactly one injection point. The user script only ever
// appears base64 encoded, so no script text can end a string literal or
// otherwise reach the postamble. Every "_" in the emitted JSON is escaped as
// \u005f, which keeps the markers out of the payload.
var harnessTemplate = strings.NewReplacer(
	"@@RESULT_START@@", ResultStartMarker,
	"@@RESULT_END@@", ResultEndMarker,
	"@@SERIALIZATION_PREFIX@@", serializationErrorPrefix,
).Replace(`import base64 as _sb_base64
import io as _sb_io
import json as _sb_json
import sys as _sb_sys
from contextlib import redirect_stdout as _sb_redirect_stdout

_SB_SOURCE = _sb_base64.b64decode("@@SOURCE@@").decode("utf-8")


def _sb_encode(payload):
    return _sb_json.dumps(payload, allow_nan=False).replace("_", "\\u005f")


def _sb_emit(text):
    out = _sb_sys.__stdout__
    out.write("@@RESULT_START@@" + text + "@@RESULT_END@@\n")
    out.flush()


def _sb_describe(exc):
    if isinstance(exc, SystemExit):
        return "Script exited with status %r" % (exc.code,)
    return str(exc) or type(exc).__name__


def _sb_run():
    namespace = {"__name__": "__sandbox__", "__builtins__": __builtins__}
    capture = _sb_io.StringIO()
    with _sb_redirect_stdout(capture):
        code = compile(_SB_SOURCE, "<script>", "exec")
        exec(code, namespace)
        entry = namespace.get("main")
        if not callable(entry):
            raise NameError("Script must define a callable 'main()' function")
        result = entry()
    payload = {"result": result, "stdout": capture.getvalue(), "error": None}
    try:
        return _sb_encode(payload)
    except (TypeError, ValueError, RecursionError) as exc:
        raise TypeError(
            "@@SERIALIZATION_PREFIX@@, got: %s (%s)" % (type(result).__name__, exc)
        ) from None


if __name__ == "__main__":
    try:
        _sb_text = _sb_run()
    except BaseException as _sb_exc:
        _sb_message = _sb_describe(_sb_exc)
        _sb_emit(_sb_encode({"result": None, "stdout": "", "error": _sb_message}))
        _sb_sys.exit(1)
    _sb_emit(_sb_text)
`)

// Compose wraps script into a standalone Python program that runs main(),
// captures everything it prints and writes a single marker-framed JSON line
// to stdout.
func Compose(script string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(script))
	return strings.Replace(harnessTemplate, sourcePlaceholder, encoded, 1)
}
