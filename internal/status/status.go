// Package status derives display-ready state from raw task records.
// Everything here is pure: no I/O, no clocks, no shared state.
package status

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/accio/accio/internal/backend"
	"github.com/accio/accio/internal/backend/types"
)

// Semantic is the presentation category of a status.
type Semantic string

const (
	SemanticNeutral    Semantic = "neutral"
	SemanticInProgress Semantic = "in_progress"
	SemanticPositive   Semantic = "positive"
	SemanticNegative   Semantic = "negative"
)

// Color is the badge palette a renderer should use.
type Color string

const (
	ColorSlate   Color = "slate"
	ColorAmber   Color = "amber"
	ColorEmerald Color = "emerald"
	ColorRed     Color = "red"
)

const (
	unknownLabel  = "Unknown"
	failedMessage = "Download failed"
)

// Projection is the derived display state of one task.
type Projection struct {
	Label           string   `json:"label"`
	Semantic        Semantic `json:"semantic"`
	Color           Color    `json:"color"`
	DownloadEnabled bool     `json:"downloadEnabled"`
	DownloadURL     string   `json:"downloadUrl,omitempty"`
	ErrorMessage    string   `json:"errorMessage,omitempty"`
	Progress        string   `json:"progress,omitempty"`
}

// Project derives the presentation status of a task. It is total over any
// status string: unrecognised values project as neutral.
// staticRoot is the root a local_url resolves against.
func Project(task types.Task, staticRoot string) Projection {
	switch task.Status {
	case types.TaskStatusCompleted:
		p := Projection{
			Label:    string(types.TaskStatusCompleted),
			Semantic: SemanticPositive,
			Color:    ColorEmerald,
		}
		// COMPLETED without an artifact degrades to a disabled action.
		if task.LocalURL != "" {
			p.DownloadEnabled = true
			p.DownloadURL = backend.ResolveArtifactURL(staticRoot, task.LocalURL)
		}
		return p

	case types.TaskStatusFailed:
		msg := task.ErrorMsg
		if msg == "" {
			msg = failedMessage
		}
		return Projection{
			Label:        string(types.TaskStatusFailed),
			Semantic:     SemanticNegative,
			Color:        ColorRed,
			ErrorMessage: msg,
		}

	case types.TaskStatusDownloading:
		return Projection{
			Label:    string(types.TaskStatusDownloading),
			Semantic: SemanticInProgress,
			Color:    ColorAmber,
			Progress: ProgressText(task),
		}

	default:
		label := string(task.Status)
		if label == "" {
			label = unknownLabel
		}
		return Projection{
			Label:    label,
			Semantic: SemanticNeutral,
			Color:    ColorSlate,
		}
	}
}

// ProgressText renders the optional progress fields, e.g. "42% · 3.1 MiB/s · ETA 00:12".
func ProgressText(task types.Task) string {
	var parts []string
	if task.Percent != nil {
		parts = append(parts, fmt.Sprintf("%d%%", *task.Percent))
	} else if task.DownloadedBytes != nil && task.TotalBytes != nil && *task.TotalBytes > 0 {
		pct := *task.DownloadedBytes * 100 / *task.TotalBytes
		parts = append(parts, fmt.Sprintf("%d%%", pct))
	}
	if task.SpeedStr != "" {
		parts = append(parts, strings.TrimSpace(task.SpeedStr))
	}
	if task.EtaStr != "" {
		parts = append(parts, "ETA "+strings.TrimSpace(task.EtaStr))
	}
	return strings.Join(parts, " · ")
}

// FormatBytes renders a byte size, or "Unknown" when the size is absent or zero.
func FormatBytes(size *int64) string {
	if size == nil || *size <= 0 {
		return unknownLabel
	}
	return humanize.IBytes(uint64(*size))
}

// ShortID returns the leading segment of a dashed identifier.
func ShortID(id string) string {
	short, _, _ := strings.Cut(id, "-")
	return short
}

// DisplayTitle prefers the resolved title and falls back to the source URL.
func DisplayTitle(task types.Task) string {
	if strings.TrimSpace(task.Title) != "" {
		return task.Title
	}
	return task.URL
}
