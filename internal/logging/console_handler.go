package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type prettyHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	attrs     []slog.Attr
	groups    []string
	addSource bool
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &prettyHandler{mu: &sync.Mutex{}, writer: w, level: lvl, addSource: addSource}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}

	kvs := make([]kv, 0, record.NumAttrs()+len(h.attrs))
	flattenAttrs(&kvs, h.groups, h.attrs)
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(&kvs, h.groups, attr)
		return true
	})
	kvs = dedupeKVsByKey(kvs)

	var buf bytes.Buffer
	buf.Grow(256 + len(kvs)*32)
	h.writeHeadline(&buf, record, kvs)
	if record.Level < slog.LevelInfo {
		writeDebugFields(&buf, kvs)
	} else {
		writeInfoFields(&buf, kvs)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

// writeHeadline renders "<time> <LEVEL> [component] <subject> - <message>".
func (h *prettyHandler) writeHeadline(buf *bytes.Buffer, record slog.Record, kvs []kv) {
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	lookup := func(key string) string {
		for _, item := range kvs {
			if item.key == key {
				return attrString(item.value)
			}
		}
		return ""
	}

	fmt.Fprintf(buf, "%s %s", formatTimestamp(ts), levelLabel(record.Level))
	if component := lookup(FieldComponent); component != "" {
		fmt.Fprintf(buf, " [%s]", component)
	}
	if subject := FormatSubject(lookup(FieldJobID), lookup(FieldRecordingID)); subject != "" {
		buf.WriteString(" " + subject)
	}
	message := strings.TrimSpace(record.Message)
	if message == "" {
		message = "(no message)"
	}
	buf.WriteString(" - " + message)
	if src := record.Source(); h.addSource && src != nil {
		fmt.Fprintf(buf, " [%s:%d]", filepath.Base(src.File), src.Line)
	}
	buf.WriteByte('\n')
}

func writeDebugFields(buf *bytes.Buffer, kvs []kv) {
	for _, item := range kvs {
		fmt.Fprintf(buf, "    %s: %s\n", item.key, formatValue(item.value))
	}
}

func writeInfoFields(buf *bytes.Buffer, kvs []kv) {
	fields, hidden := selectInfoFields(kvs, 0, true)
	for _, field := range fields {
		fmt.Fprintf(buf, "    - %s: %s\n", field.label, field.value)
	}
	if hidden > 0 {
		fmt.Fprintf(buf, "    + %d more hidden\n", hidden)
	}
}

// FormatSubject renders the job/recording label shown after the component.
func FormatSubject(jobID, recordingID string) string {
	jobID = strings.TrimSpace(jobID)
	recordingID = strings.TrimSpace(recordingID)
	switch {
	case jobID != "" && recordingID != "":
		return fmt.Sprintf("Job #%s (recording %s)", jobID, recordingID)
	case jobID != "":
		return "Job #" + jobID
	case recordingID != "":
		return "Recording #" + recordingID
	}
	return ""
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	clone.attrs = append(clone.attrs, attrs...)
	return clone
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *prettyHandler) clone() *prettyHandler {
	return &prettyHandler{
		mu:        h.mu,
		writer:    h.writer,
		level:     h.level,
		addSource: h.addSource,
		attrs:     append([]slog.Attr(nil), h.attrs...),
		groups:    append([]string(nil), h.groups...),
	}
}

type kv struct {
	key   string
	value slog.Value
}

// dedupeKVsByKey keeps the first position of each key with the last value.
func dedupeKVsByKey(attrs []kv) []kv {
	if len(attrs) < 2 {
		return attrs
	}
	positions := make(map[string]int, len(attrs))
	deduped := make([]kv, 0, len(attrs))
	for _, attr := range attrs {
		if attr.key == "" {
			continue
		}
		if pos, ok := positions[attr.key]; ok {
			deduped[pos].value = attr.value
			continue
		}
		positions[attr.key] = len(deduped)
		deduped = append(deduped, attr)
	}
	return deduped
}

func flattenAttrs(dst *[]kv, prefix []string, attrs []slog.Attr) {
	for _, attr := range attrs {
		flattenAttr(dst, prefix, attr)
	}
}

func flattenAttr(dst *[]kv, prefix []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		next := prefix
		if attr.Key != "" {
			next = append(append([]string(nil), prefix...), attr.Key)
		}
		flattenAttrs(dst, next, attr.Value.Group())
		return
	}
	key := attr.Key
	if len(prefix) > 0 && key != "" {
		key = strings.Join(prefix, ".") + "." + key
	}
	*dst = append(*dst, kv{key: key, value: attr.Value})
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
