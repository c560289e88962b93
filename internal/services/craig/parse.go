package craig

import (
	"net/url"
	"regexp"
	"strings"
)

var recordingIDPattern = regexp.MustCompile(`^[A-Za-z0-9]{12}$`)

// ValidRecordingID reports whether the value looks like a recording id.
func ValidRecordingID(id string) bool {
	return recordingIDPattern.MatchString(id)
}

// ParseInput extracts a recording id and access key from a share URL or a
// bare id. Supported URL shapes are the player page (/rec/<id>?key=...) and
// the dashboard page (/home/<id>/...). A bare id returns an empty key.
func ParseInput(input string) (id, key string, ok bool) {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		parsed, err := url.Parse(input)
		if err != nil {
			return "", "", false
		}
		switch {
		case strings.HasPrefix(parsed.Path, "/rec/"):
			id = strings.SplitN(strings.TrimPrefix(parsed.Path, "/rec/"), "/", 2)[0]
		case strings.HasPrefix(parsed.Path, "/home/"):
			id = strings.SplitN(strings.TrimPrefix(parsed.Path, "/home/"), "/", 2)[0]
		default:
			return "", "", false
		}
		return id, parsed.Query().Get("key"), id != ""
	}
	if ValidRecordingID(input) {
		return input, "", true
	}
	return "", "", false
}
