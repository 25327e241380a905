package content_repo

import "strings"

// joinColumns renders a column list for interpolation into hand-written SQL.
// Columns come from struct tags, never from user input.
func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}
