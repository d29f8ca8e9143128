// Package logtail reads the end of the transmon log file for the UI log pane.
//
// # Reading Log Files
//
// Read keeps a ring buffer of the last maxLines lines, so the cost does not
// depend on the file size. A missing file is not an error; the log file is
// only created once the TUI redirects the standard logger.
//
// # Severity
//
// The monitor logs through the standard library logger, which has no
// levels. Level classifies a line by its wording so the pane can color
// connection failures and authentication problems.
package logtail
