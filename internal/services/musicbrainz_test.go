package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMusicBrainzOfficialLink(t *testing.T) {
	tc := []struct {
		name      string
		relations string
		want      string
	}{
		{
			name:      "prefers official homepage",
			relations: `[{"type":"last.fm","url":{"resource":"https://last.fm/a"}},{"type":"official homepage","url":{"resource":"https://artist.com"}}]`,
			want:      "https://artist.com",
		},
		{
			name:      "falls back to bandcamp",
			relations: `[{"type":"last.fm","url":{"resource":"https://last.fm/a"}},{"type":"bandcamp","url":{"resource":"https://a.bandcamp.com"}}]`,
			want:      "https://a.bandcamp.com",
		},
		{
			name:      "then last.fm",
			relations: `[{"type":"youtube","url":{"resource":"https://youtube.com/a"}},{"type":"last.fm","url":{"resource":"https://last.fm/a"}}]`,
			want:      "https://last.fm/a",
		},
		{
			name:      "nothing suitable",
			relations: `[{"type":"youtube","url":{"resource":"https://youtube.com/a"}}]`,
			want:      "",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("User-Agent") != musicbrainzUserAgent {
					t.Errorf("expected user agent, got %q", r.Header.Get("User-Agent"))
				}
				switch r.URL.Path {
				case "/artist":
					fmt.Fprint(w, `{"artists":[{"id":"mbid-1"}]}`)
				case "/artist/mbid-1":
					fmt.Fprintf(w, `{"relations":%s}`, tt.relations)
				default:
					t.Errorf("unexpected path %s", r.URL.Path)
				}
			}))
			defer srv.Close()

			got, err := NewMusicBrainzService(srv.URL, testLogger()).OfficialLink(context.Background(), "Artist")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	t.Run("unknown artist", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"artists":[]}`)
		}))
		defer srv.Close()

		got, err := NewMusicBrainzService(srv.URL, testLogger()).OfficialLink(context.Background(), "Nobody")
		if err != nil || got != "" {
			t.Errorf("expected empty result, got %q (%v)", got, err)
		}
	})
}
