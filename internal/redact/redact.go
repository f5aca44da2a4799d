// Package redact hides PII in log output. It provides a string filter for
// field=value formatted messages and a slog.Handler wrapper that scrubs
// configured attribute keys before records reach the sink.
package redact

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// DefaultRedaction is the replacement text for filtered values.
const DefaultRedaction = "***"

// DefaultPIIFields are the attribute keys scrubbed when none are given.
var DefaultPIIFields = []string{"name", "email", "phone", "ssn", "password"}

// FilterDatum replaces the value of every listed field in a
// separator-delimited "field=value" message with the redaction string.
func FilterDatum(fields []string, redaction, message, separator string) string {
	pattern := fmt.Sprintf(`(%s)=[^%s]*`,
		strings.Join(escapeAll(fields), "|"), regexp.QuoteMeta(separator))
	re := regexp.MustCompile(pattern)
	return re.ReplaceAllString(message, "${1}="+redaction)
}

func escapeAll(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = regexp.QuoteMeta(f)
	}
	return out
}

// Handler wraps a slog.Handler and replaces the values of configured PII
// attribute keys with the redaction string. Group structure is preserved;
// only leaf values whose key matches are replaced. Record messages are
// filtered too: any "field=value" run for a configured field is scrubbed
// before the record reaches the sink.
type Handler struct {
	inner     slog.Handler
	fields    map[string]struct{}
	messageRe *regexp.Regexp
	redaction string
}

var _ slog.Handler = (*Handler)(nil)

// NewHandler wraps inner so that attributes keyed by any of fields are
// redacted. An empty fields list falls back to DefaultPIIFields.
func NewHandler(inner slog.Handler, fields ...string) *Handler {
	if len(fields) == 0 {
		fields = DefaultPIIFields
	}
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	// Value runs inside messages end at whitespace.
	messageRe := regexp.MustCompile(fmt.Sprintf(`(%s)=\S*`,
		strings.Join(escapeAll(fields), "|")))
	return &Handler{inner: inner, fields: set, messageRe: messageRe, redaction: DefaultRedaction}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	msg := h.messageRe.ReplaceAllString(r.Message, "${1}="+h.redaction)
	clean := slog.NewRecord(r.Time, r.Level, msg, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(h.redactAttr(a))
		return true
	})
	return h.inner.Handle(ctx, clean)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redactAttr(a)
	}
	return &Handler{inner: h.inner.WithAttrs(redacted), fields: h.fields, messageRe: h.messageRe, redaction: h.redaction}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name), fields: h.fields, messageRe: h.messageRe, redaction: h.redaction}
}

func (h *Handler) redactAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		redacted := make([]any, len(group))
		for i, g := range group {
			redacted[i] = h.redactAttr(g)
		}
		return slog.Group(a.Key, redacted...)
	}
	if _, ok := h.fields[a.Key]; ok {
		return slog.String(a.Key, h.redaction)
	}
	return a
}
