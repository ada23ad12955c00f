package status

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/accio/accio/internal/backend/types"
)

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }

func TestProject_Totality(t *testing.T) {
	tests := []struct {
		status   types.TaskStatus
		semantic Semantic
		color    Color
	}{
		{types.TaskStatusPending, SemanticNeutral, ColorSlate},
		{types.TaskStatusDownloading, SemanticInProgress, ColorAmber},
		{types.TaskStatusCompleted, SemanticPositive, ColorEmerald},
		{types.TaskStatusFailed, SemanticNegative, ColorRed},
		{types.TaskStatus("ARCHIVED"), SemanticNeutral, ColorSlate},
		{types.TaskStatus("downloading"), SemanticNeutral, ColorSlate},
		{types.TaskStatus(""), SemanticNeutral, ColorSlate},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			for _, local := range []string{"", "/dl/x.mp4"} {
				p := Project(types.Task{ID: "x", Status: tt.status, LocalURL: local}, "http://host")

				assert.Equal(t, tt.semantic, p.Semantic)
				assert.Equal(t, tt.color, p.Color)
				assert.NotEmpty(t, p.Label)

				wantEnabled := tt.status == types.TaskStatusCompleted && local != ""
				assert.Equal(t, wantEnabled, p.DownloadEnabled)
			}
		})
	}
}

func TestProject_Completed(t *testing.T) {
	p := Project(types.Task{Status: types.TaskStatusCompleted, LocalURL: "/downloads/youtube/a.mp4"}, "http://host:8000")
	assert.True(t, p.DownloadEnabled)
	assert.Equal(t, "http://host:8000/downloads/youtube/a.mp4", p.DownloadURL)

	missing := Project(types.Task{Status: types.TaskStatusCompleted}, "http://host:8000")
	assert.False(t, missing.DownloadEnabled)
	assert.Empty(t, missing.DownloadURL)
	assert.Equal(t, SemanticPositive, missing.Semantic)
}

func TestProject_Failed(t *testing.T) {
	p := Project(types.Task{Status: types.TaskStatusFailed, ErrorMsg: "HTTP Error 403: Forbidden"}, "")
	assert.Equal(t, "HTTP Error 403: Forbidden", p.ErrorMessage)

	generic := Project(types.Task{Status: types.TaskStatusFailed}, "")
	assert.Equal(t, failedMessage, generic.ErrorMessage)
}

func TestProject_Empty(t *testing.T) {
	assert.Equal(t, unknownLabel, Project(types.Task{}, "").Label)
}

func TestProgressText(t *testing.T) {
	assert.Equal(t, "", ProgressText(types.Task{}))
	assert.Equal(t, "42% · 1.2MiB/s · ETA 00:12", ProgressText(types.Task{
		Percent:  intPtr(42),
		SpeedStr: "1.2MiB/s",
		EtaStr:   "00:12",
	}))
	assert.Equal(t, "25%", ProgressText(types.Task{
		DownloadedBytes: int64Ptr(25),
		TotalBytes:      int64Ptr(100),
	}))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "Unknown", FormatBytes(nil))
	assert.Equal(t, "Unknown", FormatBytes(int64Ptr(0)))
	assert.Equal(t, "512 B", FormatBytes(int64Ptr(512)))
	assert.Equal(t, "48 MiB", FormatBytes(int64Ptr(50000000)))
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "3f2a9c1e", ShortID("3f2a9c1e-1b2c-4d5e-8f90-123456789abc"))
	assert.Equal(t, "plain", ShortID("plain"))
	assert.Equal(t, "", ShortID(""))
}

func TestDisplayTitle(t *testing.T) {
	assert.Equal(t, "Clip", DisplayTitle(types.Task{Title: "Clip", URL: "https://x"}))
	assert.Equal(t, "https://x", DisplayTitle(types.Task{Title: "  ", URL: "https://x"}))
}
