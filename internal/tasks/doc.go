// Package tasks turns what users type into stored, playable tracks.
//
// # Classification
//
// [Classifier] maps an input to a [Ref], a tagged {Kind, ID} pair. Links to YouTube videos
// and playlists, Spotify and Napster tracks, albums and playlists, and Subsonic deep links on
// configured hosts get a provider kind; everything else is [KindText].
//
// # Acquisition
//
// [Pipeline.Fetch] dispatches on the shape of the reference:
//
//  1. Text is looked up in the search cache, then by stored key, then searched on Subsonic
//     and YouTube in that order
//  2. Single links are fetched from their provider and reconciled with the store
//  3. Albums and playlists are resolved item by item, in order; items that fail become
//     placeholders and only an entirely failed collection is an error
//
// Spotify and Napster only describe tracks. Their items are matched to a playable source
// by name and artist and the metadata is attached to the stored track.
//
// # Workers
//
// [Pool] runs fetches on a fixed set of supervised workers behind a rate limiter. Every
// request carries a correlation id and gets exactly one [Result]. A worker that panics is
// replaced and its request fails with shared.ErrWorkerLost.
//
// Progress is reported on an optional channel with select and default, so a slow reader
// drops [ProgressUpdate] values instead of stalling workers.
package tasks
