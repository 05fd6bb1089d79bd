package mailbox

import (
	"fmt"
	"strconv"
	"strings"
)

// MessageID addresses one message across folder boundaries. UIDs are
// only unique within a folder, so the folder name is part of the key.
type MessageID struct {
	UID    uint32
	Folder string
}

// String renders the wire form "<uid>@<folder>".
func (id MessageID) String() string {
	return fmt.Sprintf("%d@%s", id.UID, id.Folder)
}

// ParseMessageID splits a wire-form identifier on the first "@" only,
// so folder names containing further "@" characters round-trip.
func ParseMessageID(s string) (MessageID, error) {
	uidStr, folder, ok := strings.Cut(s, "@")
	if !ok {
		return MessageID{}, fmt.Errorf("invalid message id %q: missing @", s)
	}

	uid, err := strconv.ParseUint(uidStr, 10, 32)
	if err != nil {
		return MessageID{}, fmt.Errorf("invalid message id %q: %w", s, err)
	}

	return MessageID{UID: uint32(uid), Folder: folder}, nil
}
