// Package services implements the [Source] adapters for YouTube, Spotify, Napster and Subsonic,
// plus the account-linking clients for Last.fm and the MusicBrainz homepage lookup.
//
// # Source Interface
//
// Every provider normalizes its tracks into [models.TrackSource] so the acquisition pipeline can
// treat them uniformly. Fetch-by-id calls surface provider errors; text search logs failures and
// returns nil so a missing match never aborts a batch.
//
// # YouTube
//
// [YouTubeService] reads video details from the Data API when an api key is configured and from
// yt-dlp otherwise. The content id (the licensed song and artist behind a video) comes from yt-dlp
// or from a YouTube Music search hint. Search tries YouTube Music, then the Data API, then a page
// scraper, and stops at the first one that yields ids.
//
// # Spotify and Napster
//
// [SpotifyService] uses an app token from the client credentials flow for catalog calls and the
// authorization code flow for account linking. [NapsterService] signs every call with its static
// api key and pages by offset until meta.totalCount.
//
// # Subsonic
//
// [SubsonicService] signs each request with a fresh salt and md5(password+salt). Stored sources
// carry [SubsonicPlaceholderURL]; playback and art are fetched through freshly signed URLs that
// never leave the process.
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrMissingCredentials] : required config is absent
//   - [shared.ErrAPIRequest] : transport failure or non-2xx response
//   - [shared.ErrTrackNotFound] : 404, empty result or Subsonic error 70
//   - [shared.ErrPlaylistNotFound] : playlist id unknown
//   - [shared.ErrUnsupported] : the provider has no such concept (YouTube albums)
package services
