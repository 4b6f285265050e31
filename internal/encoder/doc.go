// Package encoder runs Drapto transcodes for encode jobs and reports
// structured progress.
//
// Two Client implementations exist: Library calls the Drapto Go library in
// process, and CLI shells out to the drapto binary and parses its
// --progress-json stream. New selects one from configuration. Both translate
// encoder events into ProgressUpdate values so the encode manager can persist
// progress without knowing which engine ran.
package encoder
