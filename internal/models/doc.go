// Package models defines the goose documents and the store contracts around them.
//
// The package contains three categories of types:
//
// 1. Stored documents, persisted in the "tracks" and "users" collections
//   - [Track] : one canonical song keyed by goose.id, with every provider source merged in
//   - [User] : a Discord user with value histories, linked accounts and a [Stash]
//   - [LegacyTrack] : the raw decode target that keeps version 0 fields readable
//
// 2. Provider shapes
//   - [TrackSource] : the provider-neutral descriptor every source adapter produces
//   - [YouTubeSource] : a playable YouTube alternate, optionally carrying a [ContentID]
//
// 3. Contracts
//   - [TrackStore] and [UserStore] : persistence operations the pipeline, player and bot rely on
//   - [TrackUpgrader] and [UserUpgrader] : lazy schema migration applied on read
//   - [PlayLogger] : fire-and-forget play telemetry
//
// Stored documents carry an explicit Version. A missing version decodes as 0 and is upgraded on read.
package models
