package mailbox

import "context"

// Session is one authenticated mail-server connection. A session is
// exclusively owned by a single operation for its whole duration and
// released with Logout regardless of outcome.
type Session interface {
	// Folders lists the folder names visible to the authenticated
	// principal.
	Folders() ([]string, error)

	// Select makes the named folder current for Search and FetchRaw.
	Select(folder string) error

	// Search submits a compiled SEARCH token sequence and returns the
	// matching message UIDs in server order.
	Search(tokens []string) ([]uint32, error)

	// FetchRaw retrieves the full raw transport form of each given
	// UID, keyed by UID. UIDs unknown to the folder are simply absent
	// from the result.
	FetchRaw(uids []uint32) (map[uint32][]byte, error)

	// Logout releases the connection.
	Logout() error
}

// Dialer opens sessions: connect, negotiate TLS, authenticate.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}
