// Package server is the account-link web service.
//
// # Router
//
// [BasicRouter] wraps [http.ServeMux] with a [Middleware] stack. Middleware wraps in
// reverse order, so the first added runs outermost. Handlers implement [Handler] to carry
// their own route patterns and are mounted for a method with [BasicRouter.Mount].
// [NewRouter] installs [Logging] and [Recover] and mounts what the [Deps] allow:
//
//	GET /healthz             liveness plus document store state
//	GET /oauth2/spotify      Spotify authorization code callback
//	GET /oauth2/napster      Napster authorization code callback
//	GET /lastfm              Last.fm web auth callback
//	GET /subsonic-art/{id}   Subsonic cover art proxy
//
// # Account linking
//
// /link in Discord issues a single-use state bound to the user and the service. The
// provider redirects back with that state and a code; [OAuthHandler] consumes the state,
// exchanges the code, fetches the profile and stores both token and profile on the user.
// Last.fm sends a token instead of a code and may identify the user by webClientId.
//
// # Art proxy
//
// Subsonic art URLs are signed with the server password. Tracks store a link to this
// service instead and [ArtHandler] fetches the image with fresh credentials.
//
// [Server] runs the router until its context is cancelled and then shuts down gracefully.
package server
