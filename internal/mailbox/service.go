// Package mailbox orchestrates mailbox search and retrieval over a
// Session: it compiles filters, drives SEARCH, paginates FETCH calls
// and reconstructs the results.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/time/rate"

	"github.com/fgken/mcp-server-imap/internal/query"
	"github.com/fgken/mcp-server-imap/internal/rfc822"
	"github.com/fgken/mcp-server-imap/internal/store"
)

const (
	// fetchBatchSize caps how many messages one FETCH call may carry.
	fetchBatchSize = 50

	// batchInterval is the fixed pacing between consecutive fetch
	// batches within one search.
	batchInterval = 500 * time.Millisecond
)

// ErrNotFound reports a UID that does not exist in its folder.
var ErrNotFound = errors.New("message not found")

// Fields selects which message components an operation should return.
type Fields struct {
	Headers bool
	Body    bool
}

// Any reports whether any component was requested at all. When
// nothing is requested no fetch traffic is issued.
func (f Fields) Any() bool {
	return f.Headers || f.Body
}

// Message is one search result. Headers is non-nil only when headers
// were requested (possibly empty when none of the whitelisted headers
// exist); Body is non-nil only when the body was requested.
type Message struct {
	ID      string
	Headers map[string]string
	Body    *string
}

// waiter paces fetch batches. *rate.Limiter satisfies it.
type waiter interface {
	Wait(ctx context.Context) error
}

// Service owns the session lifecycle for one request at a time and
// exposes the mailbox operations served over MCP.
type Service struct {
	dialer      Dialer
	newThrottle func() waiter
	cache       *store.BodyCache // optional, nil disables caching
}

// New creates a Service. cache may be nil to disable the local body
// cache.
func New(dialer Dialer, cache *store.BodyCache) *Service {
	return &Service{
		dialer:      dialer,
		newThrottle: newBatchThrottle,
		cache:       cache,
	}
}

// newBatchThrottle returns a limiter that paces a full interval from
// the moment it is created. The throttle is built per fetch run, not
// per Service: a long-lived limiter accrues a token while the service
// sits idle between requests, which would let the first inter-batch
// wait return immediately.
func newBatchThrottle() waiter {
	limiter := rate.NewLimiter(rate.Every(batchInterval), 1)
	limiter.Allow() // drain the initial burst
	return limiter
}

// ListFolders enumerates the folders visible to the configured
// account.
func (s *Service) ListFolders(ctx context.Context) ([]string, error) {
	sess, err := s.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sess.Logout() }()

	folders, err := sess.Folders()
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	return folders, nil
}

// Search compiles the filter, runs SEARCH in folder, and returns the
// matching messages enriched per fields, preserving the server's
// search-result order. It either returns the complete result or an
// error, never a partial list. When fields requests nothing, or
// nothing matches, no fetch call is made at all.
func (s *Service) Search(
	ctx context.Context,
	folder string,
	filter query.Filter,
	fields Fields,
) ([]Message, error) {
	tokens, err := query.Compile(filter)
	if err != nil {
		return nil, err
	}
	program := append([]string{"CHARSET", "UTF-8"}, tokens...)
	log.Printf("search %q: compiled program %v", folder, program)

	sess, err := s.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sess.Logout() }()

	if err := sess.Select(folder); err != nil {
		return nil, fmt.Errorf("selecting folder %q: %w", folder, err)
	}

	uids, err := sess.Search(program)
	if err != nil {
		return nil, fmt.Errorf("searching folder %q: %w", folder, err)
	}

	if !fields.Any() || len(uids) == 0 {
		return []Message{}, nil
	}

	raw, err := s.fetchBatched(ctx, sess, uids)
	if err != nil {
		return nil, err
	}

	messages := make([]Message, 0, len(uids))
	for _, uid := range uids {
		blob, ok := raw[uid]
		if !ok {
			return nil, fmt.Errorf(
				"fetching folder %q: uid %d missing from fetch response: %w",
				folder, uid, ErrNotFound,
			)
		}

		rec := rfc822.Reconstruct(blob)
		msg := Message{ID: MessageID{UID: uid, Folder: folder}.String()}
		if fields.Headers {
			msg.Headers = rec.Headers()
		}
		if fields.Body {
			body := rec.Body()
			msg.Body = &body
			s.cachePut(ctx, folder, uid, body)
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// fetchBatched retrieves the raw form of every UID in fixed-size
// batches, pausing between batches (never after the last) so large
// result sets do not hammer the server. Responses are merged into one
// map so callers can re-index by UID instead of trusting per-batch
// response order.
func (s *Service) fetchBatched(
	ctx context.Context,
	sess Session,
	uids []uint32,
) (map[uint32][]byte, error) {
	raw := make(map[uint32][]byte, len(uids))
	throttle := s.newThrottle()

	for start := 0; start < len(uids); start += fetchBatchSize {
		if start > 0 {
			if err := throttle.Wait(ctx); err != nil {
				return nil, err
			}
		}

		end := start + fetchBatchSize
		if end > len(uids) {
			end = len(uids)
		}

		batch, err := sess.FetchRaw(uids[start:end])
		if err != nil {
			return nil, fmt.Errorf("fetching batch %d-%d: %w", start, end-1, err)
		}
		for uid, blob := range batch {
			raw[uid] = blob
		}
	}

	return raw, nil
}

// FetchBodies resolves each wire-form id to its message body. Every
// lookup opens its own session since each id may target a different
// folder. A lookup failure is scoped to its entry: the id is logged
// and omitted while the remaining ids still resolve. Malformed input
// ids fail the whole call before any network activity.
func (s *Service) FetchBodies(
	ctx context.Context,
	ids []string,
) (map[string]string, error) {
	parsed := make([]MessageID, 0, len(ids))
	for _, raw := range ids {
		id, err := ParseMessageID(raw)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, id)
	}

	results := make(map[string]string, len(ids))
	for i, id := range parsed {
		body, err := s.fetchBody(ctx, id)
		if err != nil {
			log.Printf("fetch %q: %v (entry skipped)", ids[i], err)
			continue
		}
		results[ids[i]] = body
	}

	return results, nil
}

// fetchBody retrieves and reconstructs a single message body, served
// from the local cache when possible.
func (s *Service) fetchBody(ctx context.Context, id MessageID) (string, error) {
	if s.cache != nil {
		body, ok, err := s.cache.Get(ctx, id.Folder, id.UID)
		if err != nil {
			log.Printf("cache get %s: %v", id, err)
		} else if ok {
			return body, nil
		}
	}

	sess, err := s.dialer.Dial(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = sess.Logout() }()

	if err := sess.Select(id.Folder); err != nil {
		return "", fmt.Errorf("selecting folder %q: %w", id.Folder, err)
	}

	raw, err := sess.FetchRaw([]uint32{id.UID})
	if err != nil {
		return "", fmt.Errorf("fetching uid %d: %w", id.UID, err)
	}

	blob, ok := raw[id.UID]
	if !ok {
		return "", fmt.Errorf("uid %d in folder %q: %w", id.UID, id.Folder, ErrNotFound)
	}

	body := rfc822.Reconstruct(blob).Body()
	s.cachePut(ctx, id.Folder, id.UID, body)
	return body, nil
}

// cachePut stores a reconstructed body, best-effort.
func (s *Service) cachePut(ctx context.Context, folder string, uid uint32, body string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(ctx, folder, uid, body); err != nil {
		log.Printf("cache put %d@%s: %v", uid, folder, err)
	}
}
