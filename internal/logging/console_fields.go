package logging

import (
	"log/slog"
	"strings"
)

type infoField struct {
	label string
	value string
}

const infoAttrLimit = 8

// Keys rendered first, in this order, on info-level console lines.
var infoHighlightKeys = []string{
	FieldAlert,
	FieldEventType,
	FieldProgressStage,
	FieldProgressPercent,
	"output_name",
	"output_path",
	"mode",
	"status",
	"error_message",
	"error",
	FieldErrorHint,
	FieldImpact,
	"input_size_bytes",
	"output_size_bytes",
	"reduction_percent",
	"encode_duration",
	"archived_url",
	"validation_status",
	"drapto_warning",
}

// selectInfoFields returns formatted info-level fields and a count of hidden
// entries. limit=0 means no limit.
func selectInfoFields(attrs []kv, limit int, includeDebug bool) ([]infoField, int) {
	if len(attrs) == 0 {
		return nil, 0
	}
	used := make([]bool, len(attrs))
	result := make([]infoField, 0, infoAttrLimit)
	hidden := 0

	consider := func(idx int) {
		used[idx] = true
		key := attrs[idx].key
		if skipInfoKey(key) {
			return
		}
		if !includeDebug && isDebugOnlyKey(key) {
			hidden++
			return
		}
		value := formatValueForKey(key, attrs[idx].value)
		if !includeDebug && len(value) > 120 && key != "error" && key != "error_message" {
			hidden++
			return
		}
		if limit > 0 && len(result) >= limit {
			hidden++
			return
		}
		result = append(result, infoField{label: displayLabel(key), value: value})
	}

	for _, key := range infoHighlightKeys {
		for idx, attr := range attrs {
			if !used[idx] && attr.key == key {
				consider(idx)
				break
			}
		}
	}
	for idx := range attrs {
		if !used[idx] {
			consider(idx)
		}
	}
	return result, hidden
}

func formatValueForKey(key string, v slog.Value) string {
	v = v.Resolve()
	switch {
	case strings.HasSuffix(key, "_bytes") && v.Kind() == slog.KindInt64:
		return formatBytes(v.Int64())
	case strings.HasSuffix(key, "_duration") && v.Kind() == slog.KindDuration:
		return formatDurationHuman(v.Duration())
	case strings.HasSuffix(key, "_percent") && v.Kind() == slog.KindFloat64:
		return formatPercent(v.Float64())
	case v.Kind() == slog.KindBool:
		if v.Bool() {
			return "yes"
		}
		return "no"
	}
	value := formatValue(v)
	if (key == "error" || key == "error_message") && len(value) > 200 {
		value = value[:200] + "..."
	}
	return value
}

func skipInfoKey(key string) bool {
	switch key {
	case "", FieldComponent, FieldJobID, FieldRecordingID:
		return true
	default:
		return false
	}
}

func isDebugOnlyKey(key string) bool {
	switch key {
	case FieldCorrelationID, FieldWorker, "source_path", "staging_path", "sequence":
		return true
	}
	return strings.HasSuffix(key, "_dir")
}

func displayLabel(key string) string {
	switch key {
	case FieldAlert:
		return "Alert"
	case FieldEventType:
		return "Event"
	case FieldErrorHint:
		return "Hint"
	case FieldProgressStage:
		return "Phase"
	case FieldProgressPercent:
		return "Progress"
	case "output_name":
		return "Output"
	case "output_path":
		return "Path"
	case "reduction_percent":
		return "Reduction"
	case "archived_url":
		return "Archive"
	}
	parts := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' || r == '.' })
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + strings.ToLower(part[1:])
	}
	return strings.Join(parts, " ")
}
