package server

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/fgken/mcp-server-imap/internal/mailbox"
	"github.com/fgken/mcp-server-imap/internal/query"
)

type fakeMailbox struct {
	folders []string

	searchFolder string
	searchFilter query.Filter
	searchFields mailbox.Fields
	messages     []mailbox.Message
	searchErr    error

	fetchIDs []string
	bodies   map[string]string
}

func (f *fakeMailbox) ListFolders(context.Context) ([]string, error) {
	return f.folders, nil
}

func (f *fakeMailbox) Search(
	_ context.Context,
	folder string,
	filter query.Filter,
	fields mailbox.Fields,
) ([]mailbox.Message, error) {
	f.searchFolder = folder
	f.searchFilter = filter
	f.searchFields = fields
	return f.messages, f.searchErr
}

func (f *fakeMailbox) FetchBodies(_ context.Context, ids []string) (map[string]string, error) {
	f.fetchIDs = ids
	return f.bodies, nil
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res.IsError {
		t.Fatalf("tool returned error result: %+v", res.Content)
	}
	if len(res.Content) != 1 {
		t.Fatalf("got %d content blocks, want 1", len(res.Content))
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return text.Text
}

func TestHandleListFolders(t *testing.T) {
	mb := &fakeMailbox{folders: []string{"INBOX", "Archive"}}

	res, err := handleListFolders(mb)(context.Background(), callRequest(nil))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	var payload struct {
		Folders []string `json:"folders"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &payload); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if diff := cmp.Diff([]string{"INBOX", "Archive"}, payload.Folders); diff != "" {
		t.Errorf("folders mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleSearch(t *testing.T) {
	body := "hello"
	mb := &fakeMailbox{
		messages: []mailbox.Message{
			{
				ID:      "42@INBOX",
				Headers: map[string]string{"subject": "hi"},
				Body:    &body,
			},
			{ID: "43@INBOX", Headers: map[string]string{}},
		},
	}

	res, err := handleSearch(mb)(context.Background(), callRequest(map[string]any{
		"folder": "INBOX",
		"criteria": map[string]any{
			"from": "alice",
			// The composites take lists of criteria objects, exactly
			// as the tool description advertises.
			"not": []any{map[string]any{"subject": "spam"}},
		},
		"fields": map[string]any{"headers": true, "body": true},
	}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	if mb.searchFolder != "INBOX" {
		t.Errorf("searched folder %q", mb.searchFolder)
	}
	if mb.searchFilter.From != "alice" {
		t.Errorf("filter = %+v", mb.searchFilter)
	}
	if len(mb.searchFilter.Not) != 1 || mb.searchFilter.Not[0].Subject != "spam" {
		t.Errorf("not composite = %+v, want one negated subject criteria", mb.searchFilter.Not)
	}
	if !mb.searchFields.Headers || !mb.searchFields.Body {
		t.Errorf("fields = %+v", mb.searchFields)
	}

	var payload struct {
		Messages []map[string]any `json:"messages"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &payload); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if len(payload.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(payload.Messages))
	}
	if payload.Messages[0]["id"] != "42@INBOX" || payload.Messages[0]["body"] != "hello" {
		t.Errorf("message[0] = %v", payload.Messages[0])
	}
	// Headers were requested, so the key is present even when empty;
	// body was not reconstructed for this entry, so the key is absent.
	if _, ok := payload.Messages[1]["headers"]; !ok {
		t.Errorf("message[1] missing headers key: %v", payload.Messages[1])
	}
	if _, ok := payload.Messages[1]["body"]; ok {
		t.Errorf("message[1] should have no body key: %v", payload.Messages[1])
	}
}

func TestHandleSearchMissingFolder(t *testing.T) {
	res, err := handleSearch(&fakeMailbox{})(context.Background(), callRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !res.IsError {
		t.Error("missing folder should produce an error result")
	}
}

func TestHandleSearchServiceError(t *testing.T) {
	mb := &fakeMailbox{searchErr: errors.New("folder does not exist")}

	res, err := handleSearch(mb)(context.Background(), callRequest(map[string]any{
		"folder": "Nope",
	}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !res.IsError {
		t.Error("service failure should produce an error result")
	}
}

func TestHandleFetch(t *testing.T) {
	mb := &fakeMailbox{bodies: map[string]string{"42@INBOX": "hello"}}

	res, err := handleFetch(mb)(context.Background(), callRequest(map[string]any{
		"message_ids": []any{"42@INBOX", "7@Archive"},
	}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	if diff := cmp.Diff([]string{"42@INBOX", "7@Archive"}, mb.fetchIDs); diff != "" {
		t.Errorf("forwarded ids mismatch (-want +got):\n%s", diff)
	}

	var payload map[string]string
	if err := json.Unmarshal([]byte(resultText(t, res)), &payload); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if payload["42@INBOX"] != "hello" {
		t.Errorf("bodies = %v", payload)
	}
}

func TestParseFieldsArg(t *testing.T) {
	tests := []struct {
		name    string
		arg     any
		want    mailbox.Fields
		wantErr bool
	}{
		{"missing", nil, mailbox.Fields{}, false},
		{"both", map[string]any{"headers": true, "body": true}, mailbox.Fields{Headers: true, Body: true}, false},
		{"headers only", map[string]any{"headers": true}, mailbox.Fields{Headers: true}, false},
		{"explicit false", map[string]any{"body": false}, mailbox.Fields{}, false},
		{"unknown selector", map[string]any{"snippet": true}, mailbox.Fields{}, true},
		{"non-boolean", map[string]any{"body": "yes"}, mailbox.Fields{}, true},
		{"wrong shape", "headers", mailbox.Fields{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFieldsArg(tt.arg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseFieldsArg: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseMessageIDsArg(t *testing.T) {
	ids, err := parseMessageIDsArg([]any{"1@INBOX", "2@Sent"})
	if err != nil {
		t.Fatalf("parseMessageIDsArg: %v", err)
	}
	if diff := cmp.Diff([]string{"1@INBOX", "2@Sent"}, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}

	for _, arg := range []any{nil, "1@INBOX", []any{"1@INBOX", 2}} {
		if _, err := parseMessageIDsArg(arg); err == nil {
			t.Errorf("parseMessageIDsArg(%v): expected error", arg)
		}
	}
}
