// Package types defines the records exchanged with the accio backend.
package types

import (
	"sort"
)

// DefaultFormatID asks the backend to pick the best available rendition.
const DefaultFormatID = "best"

// TaskStatus is the backend-reported lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending     TaskStatus = "PENDING"
	TaskStatusDownloading TaskStatus = "DOWNLOADING"
	TaskStatusCompleted   TaskStatus = "COMPLETED"
	TaskStatusFailed      TaskStatus = "FAILED"
)

// AllStatuses returns the known statuses in lifecycle order.
func AllStatuses() []TaskStatus {
	return []TaskStatus{
		TaskStatusPending,
		TaskStatusDownloading,
		TaskStatusCompleted,
		TaskStatusFailed,
	}
}

// String returns the string representation of TaskStatus.
func (s TaskStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions are valid.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// IsKnown reports whether s is one of the four documented statuses.
func (s TaskStatus) IsKnown() bool {
	switch s {
	case TaskStatusPending, TaskStatusDownloading, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Format is one downloadable rendition of a parsed video.
type Format struct {
	FormatID   string `json:"format_id"`
	Resolution string `json:"resolution,omitempty"`
	Ext        string `json:"ext"`
	Filesize   *int64 `json:"filesize,omitempty"` // nil when the backend does not know
}

// VideoInfo is the result of a successful parse. OriginURL is the URL that
// was submitted and is not part of the wire response.
type VideoInfo struct {
	Title     string   `json:"title"`
	Thumbnail string   `json:"thumbnail,omitempty"`
	Formats   []Format `json:"formats"`
	OriginURL string   `json:"original_url"`
}

// HasFormat reports whether id names one of the parsed formats.
func (v *VideoInfo) HasFormat(id string) bool {
	for i := range v.Formats {
		if v.Formats[i].FormatID == id {
			return true
		}
	}
	return false
}

// Task is one backend-tracked download job. ID is the sole identity key.
type Task struct {
	ID        string     `json:"id"`
	URL       string     `json:"url"`
	Title     string     `json:"title,omitempty"`
	Status    TaskStatus `json:"status"`
	FormatID  string     `json:"format_id,omitempty"`
	ErrorMsg  string     `json:"error_msg,omitempty"`
	CreatedAt string     `json:"created_at"`
	LocalURL  string     `json:"local_url,omitempty"`

	// Progress fields, all optional.
	Thumbnail       string `json:"thumbnail,omitempty"`
	Percent         *int   `json:"percent,omitempty"`
	DownloadedBytes *int64 `json:"downloaded_bytes,omitempty"`
	TotalBytes      *int64 `json:"total_bytes,omitempty"`
	SpeedStr        string `json:"speed_str,omitempty"`
	EtaStr          string `json:"eta_str,omitempty"`
	FormatNote      string `json:"format_note,omitempty"`
}

// CookieStatus maps a provider name to whether a usable cookie is loaded.
type CookieStatus map[string]bool

// Providers returns the provider names in sorted order.
func (c CookieStatus) Providers() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseRequest is the body of POST /video/parse.
type ParseRequest struct {
	URL string `json:"url"`
}

// DownloadRequest is the body of POST /video/download.
type DownloadRequest struct {
	URL      string `json:"url"`
	FormatID string `json:"format_id"`
}

// DownloadResponse is the success body of POST /video/download.
type DownloadResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status,omitempty"`
}

// ErrorResponse is the body the backend sends with non-200 responses.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Equal reports whether t and o carry the same values, comparing optional
// fields by value rather than by pointer.
func (t Task) Equal(o Task) bool {
	return t.ID == o.ID &&
		t.URL == o.URL &&
		t.Title == o.Title &&
		t.Status == o.Status &&
		t.FormatID == o.FormatID &&
		t.ErrorMsg == o.ErrorMsg &&
		t.CreatedAt == o.CreatedAt &&
		t.LocalURL == o.LocalURL &&
		t.Thumbnail == o.Thumbnail &&
		t.SpeedStr == o.SpeedStr &&
		t.EtaStr == o.EtaStr &&
		t.FormatNote == o.FormatNote &&
		equalPtr(t.Percent, o.Percent) &&
		equalPtr(t.DownloadedBytes, o.DownloadedBytes) &&
		equalPtr(t.TotalBytes, o.TotalBytes)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
