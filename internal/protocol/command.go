package protocol

import (
	"strconv"
	"strings"
)

// ClearCommand is the control prefix that turns a message into a deletion
// request for the trailing messages of its channel.
const ClearCommand = "/clear"

// IsControl reports whether content is a control command rather than chat
// text. Anything starting with the prefix counts, including malformed forms,
// so that those are never stored as ordinary messages.
func IsControl(content string) bool {
	return strings.HasPrefix(content, ClearCommand)
}

// ParseClear extracts N from "/clear N". It accepts exactly two
// whitespace-separated fields with a non-negative base-10 count.
func ParseClear(content string) (int, bool) {
	if !IsControl(content) {
		return 0, false
	}
	fields := strings.Fields(content)
	if len(fields) != 2 || fields[0] != ClearCommand {
		return 0, false
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
