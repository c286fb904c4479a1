package resources

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// routineID extracts the routine ID from a routinequest://routines/{id} URI.
func routineID(uri string) (int64, error) {
	raw, ok := strings.CutPrefix(uri, routinePrefix)
	if !ok {
		return 0, fmt.Errorf("unexpected resource URI %q", uri)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("routine id must be a positive integer, got %q", raw)
	}
	return id, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
