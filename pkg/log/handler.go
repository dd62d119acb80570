package log

import (
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

const (
	ErrorKey      = "error"
	StacktraceKey = "stacktrace"
	ErrorTypeKey  = "error.detail"
)

// withError attaches err under "error" and, for cockroachdb errors, the
// captured stack under "stacktrace". Typed errors that know how to marshal
// themselves add their fields under "error.detail".
func withError(ev *zerolog.Event, err error) *zerolog.Event {
	ev = ev.AnErr(ErrorKey, err)
	if st := extractStacktrace(err); st != "" {
		ev = ev.Str(StacktraceKey, st)
	}
	var m zerolog.LogObjectMarshaler
	if errors.As(err, &m) {
		ev = ev.Object(ErrorTypeKey, m)
	}
	return ev
}

func extractStacktrace(err error) string {
	for _, payload := range errors.GetAllSafeDetails(err) {
		if len(payload.SafeDetails) > 0 && payload.SafeDetails[0] != "" {
			return payload.SafeDetails[0]
		}
	}
	return ""
}
