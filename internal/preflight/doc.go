// Package preflight provides readiness checks for the filesystem paths and
// external tools tsencode depends on.
//
// These checks run in two contexts:
//   - The daemon logs RunAll results at startup and reports CheckSystemDeps in
//     its status so operators see a missing drapto or ffmpeg before the first
//     job fails.
//   - The CLI "tsencode status" command renders the same results.
package preflight
