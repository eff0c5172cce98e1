package formatter

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/goose/internal/models"
	"github.com/desertthunder/goose/internal/player"
	th "github.com/desertthunder/goose/internal/testing"
	"github.com/desertthunder/goose/internal/workspace"
)

func song(id, name, artist, album string, duration int) models.Track {
	return models.Track{
		Goose: models.TrackGoose{
			ID:     id,
			Track:  models.TrackInfo{Name: name, Duration: duration},
			Artist: models.ArtistInfo{Name: artist},
			Album:  models.AlbumInfo{Name: album},
		},
		AudioSource: models.AudioSource{YouTube: []models.YouTubeSource{
			{ID: "yt-" + id, URL: "https://youtu.be/yt-" + id, Duration: duration},
		}},
	}
}

func testExport() *Export {
	return &Export{
		Name: "road trip",
		Tracks: []models.Track{
			song("g1", "Song One", "Artist One", "Album One", 180),
			song("g2", "Song Two", "Artist Two", "", 240),
		},
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0:00"},
		{5, "0:05"},
		{185, "3:05"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
		{-3, "0:00"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.seconds); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestTrackLine(t *testing.T) {
	t.Run("resolved track", func(t *testing.T) {
		got := TrackLine(song("g1", "Song One", "Artist One", "", 185))
		if got != "Artist One - Song One [3:05]" {
			t.Errorf("unexpected line %q", got)
		}
	})

	t.Run("no artist", func(t *testing.T) {
		got := TrackLine(models.Track{Goose: models.TrackGoose{ID: "x", Track: models.TrackInfo{Name: "Loose", Duration: 60}}})
		if got != "Loose [1:00]" {
			t.Errorf("unexpected line %q", got)
		}
	})

	t.Run("placeholder", func(t *testing.T) {
		got := TrackLine(models.NewPlaceholder("Missing Song - Nobody"))
		if !strings.Contains(got, "Missing Song - Nobody") || strings.Contains(got, "[") {
			t.Errorf("unexpected placeholder line %q", got)
		}
	})

	t.Run("TrackURL", func(t *testing.T) {
		tr := song("g1", "a", "b", "", 1)
		if got := TrackURL(tr); got != "https://youtu.be/yt-g1" {
			t.Errorf("unexpected url %q", got)
		}
		tr.AudioSource.Subsonic = &models.TrackSource{ID: []string{"s1"}, URL: "https://goose.example/s1"}
		if got := TrackURL(tr); got != "https://goose.example/s1" {
			t.Errorf("expected subsonic url, got %q", got)
		}
		if got := TrackURL(models.NewPlaceholder("x")); got != "" {
			t.Errorf("expected no url, got %q", got)
		}
	})
}

func batch(n int) []models.Track {
	out := make([]models.Track, n)
	for i := range out {
		out[i] = song(fmt.Sprintf("g%d", i), fmt.Sprintf("Song %d", i), "Band", "", 60)
	}
	return out
}

func TestQueue(t *testing.T) {
	t.Run("playing", func(t *testing.T) {
		q := player.NewQueue(1, nil, nil)
		q.QueueLast(batch(12))
		q.Jump(10)

		out := Queue(q.Snapshot(0))
		if !strings.Contains(out, "**Now playing:** Band - Song 10") {
			t.Errorf("expected current track header, got %q", out)
		}
		if !strings.Contains(out, "▶ ` 11` Band - Song 10") {
			t.Errorf("expected marker on current track, got %q", out)
		}
		if strings.Contains(out, "Song 0 ") {
			t.Error("expected only the second page")
		}
		if !strings.HasSuffix(out, "Page 2 of 2") {
			t.Errorf("expected page footer, got %q", out)
		}
	})

	t.Run("paused and looping", func(t *testing.T) {
		q := player.NewQueue(1, nil, nil)
		q.QueueLast(batch(2))
		q.TogglePause()
		q.ToggleLoop()

		out := Queue(q.Snapshot(1))
		if !strings.Contains(out, "**Now paused:**") || !strings.Contains(out, "looping") {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("empty", func(t *testing.T) {
		out := Queue(player.NewQueue(1, nil, nil).Snapshot(1))
		if !strings.HasPrefix(out, "**Queue is empty**") {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("exhausted", func(t *testing.T) {
		q := player.NewQueue(1, nil, nil)
		q.QueueLast(batch(1))
		q.Advance()

		out := Queue(q.Snapshot(0))
		if !strings.Contains(out, "(1 played)") || strings.Contains(out, "▶") {
			t.Errorf("unexpected output %q", out)
		}
	})
}

func TestWorkspace(t *testing.T) {
	w := workspace.New(1, nil, nil)
	if out := Workspace(w.Page(1, 0)); out != "**Workspace is empty**" {
		t.Errorf("unexpected output %q", out)
	}

	w.AddTracks(batch(3), 0)
	out := Workspace(w.Page(1, 2))
	if !strings.Contains(out, "(3 tracks)") || !strings.Contains(out, "`  2` Band - Song 1") {
		t.Errorf("unexpected output %q", out)
	}
	if !strings.HasSuffix(out, "Page 1 of 2") {
		t.Errorf("expected page footer, got %q", out)
	}
}

func TestTracks(t *testing.T) {
	out := Tracks(batch(5), 2)
	lines := strings.Split(out, "\n")
	if len(lines) != 3 || lines[2] != "…and 3 more" {
		t.Errorf("unexpected output %q", out)
	}

	long := make([]models.Track, 200)
	for i := range long {
		long[i] = song("g", strings.Repeat("x", 40), "Band", "", 1)
	}
	if got := Tracks(long, 0); len(got) > MaxMessageLength {
		t.Errorf("expected output capped at %d, got %d", MaxMessageLength, len(got))
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(testExport())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "ID,Title,Artist,Album,Duration,URL") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "g1,Song One,Artist One,Album One,180,https://youtu.be/yt-g1") {
			t.Errorf("CSV missing track1 record, got: %s", output)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		t.Run("without cover image", func(t *testing.T) {
			data, err := ExportToMarkdown(testExport(), "")
			if err != nil {
				t.Fatalf("ExportToMarkdown failed: %v", err)
			}

			output := string(data)
			if !strings.Contains(output, "# road trip") {
				t.Errorf("Markdown missing title")
			}
			if !strings.Contains(output, "**Tracks**: 2") {
				t.Errorf("Markdown missing track count")
			}
			if !strings.Contains(output, "**Length**: 7:00") {
				t.Errorf("Markdown missing length")
			}
			if !strings.Contains(output, "1. Artist One - [Song One](https://youtu.be/yt-g1) (Album One) [3:00]") {
				t.Errorf("Markdown missing track1, got: %s", output)
			}
			if !strings.Contains(output, "2. Artist Two - [Song Two](https://youtu.be/yt-g2) [4:00]") {
				t.Errorf("Markdown missing track2, got: %s", output)
			}
			if strings.Contains(output, "![Cover]") {
				t.Errorf("Markdown should not contain cover image")
			}
		})

		t.Run("with cover image", func(t *testing.T) {
			data, err := ExportToMarkdown(testExport(), "cover.jpg")
			if err != nil {
				t.Fatalf("ExportToMarkdown failed: %v", err)
			}
			if !strings.Contains(string(data), "![Cover](cover.jpg)") {
				t.Errorf("Markdown missing cover image")
			}
		})
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(testExport())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Playlist: road trip") || !strings.Contains(output, "Tracks: 2") {
			t.Errorf("Text missing header, got: %s", output)
		}
		if !strings.Contains(output, "1. Artist One - Song One [3:00]") {
			t.Errorf("Text missing track1, got: %s", output)
		}
	})

	t.Run("ToMetadataJSON", func(t *testing.T) {
		data, err := ToMetadataJSON(testExport())
		if err != nil {
			t.Fatalf("ToMetadataJSON failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, `"name": "road trip"`) || !strings.Contains(output, `"duration": 420`) {
			t.Errorf("unexpected metadata: %s", output)
		}
	})
}

func TestDownloadImage(t *testing.T) {
	t.Run("EmptyURL", func(t *testing.T) {
		if _, err := DownloadImage(""); err == nil {
			t.Error("Expected error for empty URL")
		}
	})

	t.Run("Status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer srv.Close()

		if _, err := DownloadImage(srv.URL); err == nil {
			t.Error("Expected error for 404")
		}
	})
}

func TestWriters(t *testing.T) {
	t.Run("WriteCSVExport", func(t *testing.T) {
		t.Run("WithDefaultPath", func(t *testing.T) {
			tempDir := t.TempDir()
			originalDir := th.MustGetwd(t)
			th.MustChdir(t, tempDir)
			defer th.MustChdir(t, originalDir)

			result, err := WriteCSVExport(testExport(), "")
			if err != nil {
				t.Fatalf("WriteCSVExport failed: %v", err)
			}

			if result.TracksFile != "road trip_tracks.csv" {
				t.Errorf("Expected tracks file 'road trip_tracks.csv', got '%s'", result.TracksFile)
			}
			th.AssertFileExists(t, result.TracksFile)
			th.AssertFileExists(t, result.MetadataFile)

			if !strings.Contains(th.MustReadFile(t, result.MetadataFile), "road trip") {
				t.Errorf("Metadata JSON missing playlist name")
			}
		})

		t.Run("WithCustomPath", func(t *testing.T) {
			base := filepath.Join(t.TempDir(), "custom")

			result, err := WriteCSVExport(testExport(), base)
			if err != nil {
				t.Fatalf("WriteCSVExport failed: %v", err)
			}
			if result.TracksFile != base+"_tracks.csv" {
				t.Errorf("unexpected tracks file %s", result.TracksFile)
			}
			if !strings.Contains(th.MustReadFile(t, result.TracksFile), "Song Two") {
				t.Errorf("CSV missing track data")
			}
		})
	})

	t.Run("WriteMarkdownExport", func(t *testing.T) {
		t.Run("WithCover", func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "image/jpeg")
				_, _ = w.Write([]byte("jpeg"))
			}))
			defer srv.Close()

			export := testExport()
			export.Tracks[0].Goose.Track.Art = srv.URL + "/cover"
			dir := filepath.Join(t.TempDir(), "out")

			result, err := WriteMarkdownExport(export, dir)
			if err != nil {
				t.Fatalf("WriteMarkdownExport failed: %v", err)
			}
			th.AssertDirExists(t, dir)
			th.AssertFileExists(t, filepath.Join(dir, "README.md"))
			if result.CoverImage == "" || th.MustReadFile(t, result.CoverImage) != "jpeg" {
				t.Errorf("expected downloaded cover, got %+v", result)
			}
			if !strings.Contains(th.MustReadFile(t, filepath.Join(dir, "README.md")), "![Cover](cover.jpg)") {
				t.Errorf("README missing cover reference")
			}
		})

		t.Run("WithoutArt", func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "plain")

			result, err := WriteMarkdownExport(testExport(), dir)
			if err != nil {
				t.Fatalf("WriteMarkdownExport failed: %v", err)
			}
			if result.CoverImage != "" || len(result.Files) != 1 {
				t.Errorf("expected README only, got %+v", result)
			}
		})
	})

	t.Run("WriteTextExport", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tracks.txt")

		got, err := WriteTextExport(testExport(), path)
		if err != nil {
			t.Fatalf("WriteTextExport failed: %v", err)
		}
		if got != path {
			t.Errorf("Expected %s, got %s", path, got)
		}
		if !strings.Contains(th.MustReadFile(t, path), "Playlist: road trip") {
			t.Errorf("Text file missing header")
		}
	})
}
