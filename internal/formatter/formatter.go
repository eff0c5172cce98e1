// package formatter renders tracks, queues and workspaces as chat text and exports playlists to files (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/goose/internal/models"
	"github.com/desertthunder/goose/internal/player"
	"github.com/desertthunder/goose/internal/workspace"
)

// Discord rejects message content over this length.
const MaxMessageLength = 2000

// FormatDuration renders seconds as m:ss, or h:mm:ss from an hour up.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, seconds/60%60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// TrackLine renders "Artist - Name [m:ss]". Placeholders render their reason.
func TrackLine(t models.Track) string {
	if t.Status.Failed && t.Goose.ID == "" {
		return "⚠ " + t.Goose.Track.Name
	}
	name := t.Goose.Track.Name
	if t.Goose.Artist.Name != "" {
		name = t.Goose.Artist.Name + " - " + name
	}
	return fmt.Sprintf("%s [%s]", name, FormatDuration(t.Goose.Track.Duration))
}

// TrackURL returns the link of the source the track would play from.
func TrackURL(t models.Track) string {
	if p, ok := t.ChooseAudioSource(); ok {
		return p.URL
	}
	return ""
}

// Queue renders one page of a queue snapshot with the current track marked.
func Queue(s player.Snapshot) string {
	var b strings.Builder

	switch s.State {
	case player.Empty:
		b.WriteString("**Queue is empty**")
		if len(s.Tracks) > 0 {
			fmt.Fprintf(&b, " (%d played)", len(s.Tracks))
		}
		b.WriteString("\n")
	default:
		fmt.Fprintf(&b, "**Now %s:** %s\n", s.State, TrackLine(*s.Current))
	}

	offset, tracks := s.PageTracks()
	for i, t := range tracks {
		idx := offset + i
		marker := "  "
		if idx == s.Playhead && s.Current != nil {
			marker = "▶ "
		}
		fmt.Fprintf(&b, "%s`%3d` %s\n", marker, idx+1, TrackLine(t))
	}

	fmt.Fprintf(&b, "Page %d of %d", s.Page, s.Pages)
	if s.Looping {
		b.WriteString(" · looping")
	}
	return truncate(b.String())
}

// Workspace renders one page of a workspace listing.
func Workspace(p workspace.Page) string {
	if p.Total == 0 {
		return "**Workspace is empty**"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Workspace** (%d tracks)\n", p.Total)
	for i, t := range p.Tracks {
		fmt.Fprintf(&b, "`%3d` %s\n", p.Offset+i+1, TrackLine(t))
	}
	fmt.Fprintf(&b, "Page %d of %d", p.Page, p.Pages)
	return truncate(b.String())
}

// Tracks renders a short list, e.g. the result of a /play.
func Tracks(tracks []models.Track, limit int) string {
	var b strings.Builder
	for i, t := range tracks {
		if limit > 0 && i == limit {
			fmt.Fprintf(&b, "…and %d more\n", len(tracks)-limit)
			break
		}
		fmt.Fprintf(&b, "%s\n", TrackLine(t))
	}
	return truncate(strings.TrimSuffix(b.String(), "\n"))
}

func truncate(s string) string {
	if len(s) <= MaxMessageLength {
		return s
	}
	cut := s[:MaxMessageLength-len("…")]
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i]
	}
	return cut + "…"
}

// Export is a named playlist ready to be written out.
type Export struct {
	Name   string
	Tracks []models.Track
}

// Metadata is the playlist summary written beside the track export.
type Metadata struct {
	Name       string    `json:"name"`
	Tracks     int       `json:"tracks"`
	Duration   int       `json:"duration"`
	ExportedAt time.Time `json:"exportedAt"`
}

// Metadata summarizes the export.
func (e *Export) Metadata() Metadata {
	m := Metadata{Name: e.Name, Tracks: len(e.Tracks), ExportedAt: time.Now().UTC()}
	for _, t := range e.Tracks {
		m.Duration += t.Goose.Track.Duration
	}
	return m
}

// ExportToCSV converts an Export to CSV with columns: ID, Title, Artist, Album, Duration, URL
func ExportToCSV(export *Export) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Album", "Duration", "URL"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range export.Tracks {
		record := []string{
			track.Goose.ID,
			track.Goose.Track.Name,
			track.Goose.Artist.Name,
			track.Goose.Album.Name,
			strconv.Itoa(track.Goose.Track.Duration),
			TrackURL(track),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts an Export to Markdown with an optional cover image
func ExportToMarkdown(export *Export, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer
	meta := export.Metadata()

	fmt.Fprintf(&buf, "# %s\n\n", export.Name)
	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}
	fmt.Fprintf(&buf, "**Tracks**: %d\n", meta.Tracks)
	fmt.Fprintf(&buf, "**Length**: %s\n\n", FormatDuration(meta.Duration))

	buf.WriteString("## Tracks\n\n")
	for i, track := range export.Tracks {
		albumPart := ""
		if track.Goose.Album.Name != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Goose.Album.Name)
		}
		title := track.Goose.Track.Name
		if u := TrackURL(track); u != "" {
			title = fmt.Sprintf("[%s](%s)", title, u)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s [%s]\n", i+1, track.Goose.Artist.Name, title, albumPart,
			FormatDuration(track.Goose.Track.Duration))
	}

	return buf.Bytes(), nil
}

// ExportToText converts an Export to plain text
func ExportToText(export *Export) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", export.Name)
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(export.Tracks))

	for i, track := range export.Tracks {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, TrackLine(track))
	}

	return buf.Bytes(), nil
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// ToMetadataJSON renders the export summary as indented JSON
func ToMetadataJSON(export *Export) ([]byte, error) {
	return json.MarshalIndent(export.Metadata(), "", "  ")
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	TracksFile   string
	MetadataFile string
}

// WriteCSVExport writes {base}_tracks.csv and {base}_metadata.json. base defaults to the
// playlist name.
func WriteCSVExport(export *Export, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = export.Name
	}

	csvData, err := ExportToCSV(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		TracksFile:   tracksFile,
		MetadataFile: metadataFile,
	}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// WriteMarkdownExport writes {dir}/README.md and, when the first track has art that can
// be downloaded, {dir}/cover.jpg. dir defaults to the playlist name.
func WriteMarkdownExport(export *Export, outputDir string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = export.Name
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var coverImageFilename string
	if len(export.Tracks) > 0 && export.Tracks[0].Goose.Track.Art != "" {
		imageData, err := DownloadImage(export.Tracks[0].Goose.Track.Art)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to download cover image: %v\n", err)
		} else {
			coverImageFilename = "cover.jpg"
			coverImagePath := filepath.Join(outputDir, coverImageFilename)
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save cover image: %v\n", err)
				coverImageFilename = ""
			} else {
				result.CoverImage = coverImagePath
				result.Files = append(result.Files, coverImagePath)
			}
		}
	}

	mdData, err := ExportToMarkdown(export, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteTextExport writes the plain text export. path defaults to {name}_tracks.txt.
func WriteTextExport(export *Export, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_tracks.txt", export.Name)
	}

	textData, err := ExportToText(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}
