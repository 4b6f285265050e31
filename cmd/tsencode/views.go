package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"tsencode/internal/api"
	"tsencode/internal/queue"
)

var titleCaser = cases.Title(language.Und)

// formatStatusLabel turns a snake_case status into "Title Case".
func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	return titleCaser.String(strings.ReplaceAll(status, "_", " "))
}

// buildQueueStatusRows lists counts in pipeline order, skipping empty
// unknown statuses.
func buildQueueStatusRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(stats))
	seen := make(map[string]bool, len(stats))
	for _, status := range queue.AllStatuses() {
		key := string(status)
		seen[key] = true
		rows = append(rows, []string{formatStatusLabel(key), strconv.Itoa(stats[key])})
	}
	for key, count := range stats {
		if seen[key] || count == 0 {
			continue
		}
		rows = append(rows, []string{formatStatusLabel(key), strconv.Itoa(count)})
	}
	return rows
}

func buildJobRows(items []api.JobItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			strconv.FormatInt(item.RecordingID, 10),
			jobTitle(item),
			item.Mode,
			formatStatusLabel(item.Status),
			formatProgress(item.Progress),
			formatDisplayTime(item.CreatedAt),
		})
	}
	return rows
}

func buildJobDetails(item api.JobItem) [][]string {
	rows := [][]string{
		{"ID", strconv.FormatInt(item.ID, 10)},
		{"Recording", strconv.FormatInt(item.RecordingID, 10)},
		{"Status", formatStatusLabel(item.Status)},
		{"Mode", item.Mode},
		{"Source", item.SourcePath},
		{"Output name", dashIfEmpty(item.OutputName)},
		{"Output path", dashIfEmpty(item.OutputPath)},
		{"Delete source", yesNo(item.DeleteSource)},
		{"Progress", formatProgress(item.Progress)},
		{"Created", formatDisplayTime(item.CreatedAt)},
		{"Started", dashIfEmpty(formatDisplayTime(item.StartedAt))},
		{"Finished", dashIfEmpty(formatDisplayTime(item.FinishedAt))},
	}
	if msg := strings.TrimSpace(item.Progress.Message); msg != "" {
		rows = append(rows, []string{"Message", msg})
	}
	if item.ErrorMessage != "" {
		rows = append(rows, []string{"Error", item.ErrorMessage})
	}
	return rows
}

func buildRecordingRows(items []api.RecordingItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			item.Name,
			dashIfEmpty(item.Channel),
			formatBytes(item.SourceSize),
			formatDisplayTime(item.CreatedAt),
		})
	}
	return rows
}

func buildEncodedFileRows(files []api.EncodedFileItem) [][]string {
	rows := make([][]string, 0, len(files))
	for _, file := range files {
		rows = append(rows, []string{
			strconv.FormatInt(file.ID, 10),
			file.Name,
			formatBytes(file.Size),
			file.Path,
			dashIfEmpty(file.ArchivedURL),
		})
	}
	return rows
}

func buildHistoryRows(entries []api.HistoryEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		detail := entry.OutputPath
		if entry.Kind == "failure" {
			detail = entry.Error
		} else if entry.InPlace {
			detail += " (in place)"
		}
		rows = append(rows, []string{
			formatDisplayTime(entry.Timestamp),
			formatStatusLabel(entry.Kind),
			strconv.FormatInt(entry.JobID, 10),
			strconv.FormatInt(entry.RecordingID, 10),
			formatSeconds(entry.Seconds),
			detail,
		})
	}
	return rows
}

func jobTitle(item api.JobItem) string {
	if name := strings.TrimSpace(item.OutputName); name != "" {
		return name
	}
	if source := strings.TrimSpace(item.SourcePath); source != "" {
		return filepath.Base(source)
	}
	return "Unknown"
}

func formatProgress(p api.JobProgress) string {
	stage := formatStatusLabel(p.Stage)
	switch {
	case stage == "" && p.Percent <= 0:
		return "-"
	case p.Percent <= 0:
		return stage
	case stage == "":
		return fmt.Sprintf("%.0f%%", p.Percent)
	default:
		return fmt.Sprintf("%s %.0f%%", stage, p.Percent)
	}
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.Local().Format("2006-01-02 15:04")
	}
	return value
}

func formatSeconds(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return (time.Duration(seconds * float64(time.Second))).Round(time.Second).String()
}

func formatBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}

func dashIfEmpty(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
