package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// Redaction replaces every redacted value.
const Redaction = "***"

// MessageSeparator delimits key=value pairs inside free-text messages.
const MessageSeparator = ";"

// DefaultRedactFields are the PII attributes hidden unless configured otherwise.
var DefaultRedactFields = []string{"email", "password", "name", "phone", "ssn"}

// FilterDatum obfuscates the value of every "field=value" pair in message
// whose field is listed, where a value runs up to the next separator.
//
//	FilterDatum([]string{"password"}, "xxx", "name=bob;password=eggcellent;", ";")
//	// "name=bob;password=xxx;"
func FilterDatum(fields []string, redaction, message, separator string) string {
	return filterDatum(datumPattern(fields, separator), redaction, message)
}

func filterDatum(re *regexp.Regexp, redaction, message string) string {
	if re == nil {
		return message
	}
	return re.ReplaceAllStringFunc(message, func(m string) string {
		field, _, _ := strings.Cut(m, "=")
		return field + "=" + redaction
	})
}

// datumPattern is nil when there is nothing to filter.
func datumPattern(fields []string, separator string) *regexp.Regexp {
	if len(fields) == 0 {
		return nil
	}
	alts := make([]string, 0, len(fields))
	sep := regexp.QuoteMeta(separator)
	for _, f := range fields {
		alts = append(alts, regexp.QuoteMeta(f)+"=[^"+sep+"]*")
	}
	return regexp.MustCompile(strings.Join(alts, "|"))
}

// RedactingHandler wraps a slog.Handler and hides PII: attributes whose key
// is a redacted field get their value replaced, and key=value pairs inside
// the message text are filtered with FilterDatum.
type RedactingHandler struct {
	next    slog.Handler
	fields  map[string]struct{}
	pattern *regexp.Regexp
}

// NewRedactingHandler wraps next. A nil fields slice means DefaultRedactFields.
func NewRedactingHandler(next slog.Handler, fields []string) *RedactingHandler {
	if fields == nil {
		fields = DefaultRedactFields
	}
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[strings.ToLower(f)] = struct{}{}
	}
	return &RedactingHandler{next: next, fields: set, pattern: datumPattern(fields, MessageSeparator)}
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, filterDatum(h.pattern, Redaction, r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redact(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		redacted = append(redacted, h.redact(a))
	}
	return &RedactingHandler{next: h.next.WithAttrs(redacted), fields: h.fields, pattern: h.pattern}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name), fields: h.fields, pattern: h.pattern}
}

func (h *RedactingHandler) redact(a slog.Attr) slog.Attr {
	if _, ok := h.fields[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, Redaction)
	}

	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		group := v.Group()
		out := make([]any, 0, len(group))
		for _, ga := range group {
			out = append(out, h.redact(ga))
		}
		return slog.Group(a.Key, out...)
	}

	return slog.Attr{Key: a.Key, Value: v}
}
