package lineage

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MarkerKey is the key of the correlation marker embedded in submitted SQL.
const MarkerKey = "node_id"

// markerPattern extracts the quoted token written by EmbedMarker, escapes
// included. Both sides of the contract live in this file.
var markerPattern = regexp.MustCompile(`"` + MarkerKey + `"\s*:\s*"((?:[^"\\]|\\.)*)"`)

var (
	// ErrMarkerNotFound is returned when the query text carries no marker.
	ErrMarkerNotFound = errors.New("no run marker found in query text")
	// ErrAmbiguousMarker is returned when the query text carries conflicting markers.
	ErrAmbiguousMarker = errors.New("query text carries more than one run marker")
)

// EmbedMarker prefixes sql with a comment carrying token, so a failure that
// surfaces only the query text can be traced back to its run. token is a model
// unique id or a run id; both resolve through the registry.
func EmbedMarker(token, sql string) string {
	return fmt.Sprintf("/* {\"app\": \"leaplineage\", %q: %s} */\n%s", MarkerKey, quoteToken(token), sql)
}

// quoteToken quotes token so it cannot close the surrounding comment.
func quoteToken(token string) string {
	return strings.ReplaceAll(strconv.Quote(token), "*/", `*\u002f`)
}

// unquoteToken reverses quoteToken. Captures that are not valid Go string
// literals, such as JSON-only escapes from other writers, are returned raw.
func unquoteToken(raw string) string {
	if s, err := strconv.Unquote(`"` + raw + `"`); err == nil {
		return s
	}
	return raw
}

// ExtractMarker returns the token embedded by EmbedMarker.
// Repeats of the same token are accepted; distinct tokens are ambiguous.
func ExtractMarker(sql string) (string, error) {
	var token string
	for _, m := range markerPattern.FindAllStringSubmatch(sql, -1) {
		t := unquoteToken(m[1])
		switch {
		case t == "":
			continue
		case token == "":
			token = t
		case t != token:
			return "", ErrAmbiguousMarker
		}
	}
	if token == "" {
		return "", ErrMarkerNotFound
	}
	return token, nil
}
