// Package recordings persists the catalogue of recordings and the encoded
// files produced from them.
//
// Each recording tracks its source file and that file's size on disk; the
// size is refreshed after an in-place re-encode replaces the source. Encoded
// outputs are child rows removed together with their recording. The store
// shares SQLite setup, busy retries, and schema versioning with the encode
// queue through the sqlitedb package.
package recordings
