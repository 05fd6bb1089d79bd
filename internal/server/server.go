// Package server exposes the mailbox operations as MCP tools over
// stdio.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/fgken/mcp-server-imap/internal/mailbox"
	"github.com/fgken/mcp-server-imap/internal/query"
)

// Mailbox is the slice of the mailbox service the tool handlers need.
type Mailbox interface {
	ListFolders(ctx context.Context) ([]string, error)
	Search(ctx context.Context, folder string, filter query.Filter, fields mailbox.Fields) ([]mailbox.Message, error)
	FetchBodies(ctx context.Context, ids []string) (map[string]string, error)
}

// New builds the MCP server with the three mailbox tools registered.
func New(mb Mailbox, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"mcp-server-imap",
		version,
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool("list_folders",
		mcp.WithDescription("List all folders of the configured IMAP account."),
	), handleListFolders(mb))

	s.AddTool(mcp.NewTool("search",
		mcp.WithDescription("Search messages in a folder and optionally retrieve their headers and bodies."),
		mcp.WithString("folder",
			mcp.Required(),
			mcp.Description("Folder to search, e.g. INBOX."),
		),
		mcp.WithObject("criteria",
			mcp.Description("Search criteria. Field conditions: from, to, cc, subject (substring match), since, before (YYYY-MM-DD). Composites: not (list of criteria objects, each independently negated), or (list of criteria objects, any one matching suffices). An empty object matches everything."),
		),
		mcp.WithObject("fields",
			mcp.Description("Which message parts to return: {\"headers\": true, \"body\": true}. Omit to return ids only."),
		),
	), handleSearch(mb))

	s.AddTool(mcp.NewTool("fetch",
		mcp.WithDescription("Fetch the text body of messages by the ids returned from search."),
		mcp.WithArray("message_ids",
			mcp.Required(),
			mcp.Description("Message ids in uid@folder form."),
			mcp.Items(map[string]any{"type": "string"}),
		),
	), handleFetch(mb))

	return s
}

// ServeStdio runs the server on stdin/stdout until the client
// disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func handleListFolders(mb Mailbox) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reqID := uuid.NewString()
		log.Printf("[%s] list_folders", reqID)

		folders, err := mb.ListFolders(ctx)
		if err != nil {
			log.Printf("[%s] list_folders failed: %v", reqID, err)
			return mcp.NewToolResultError(err.Error()), nil
		}

		return jsonResult(map[string]any{"folders": folders})
	}
}

func handleSearch(mb Mailbox) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reqID := uuid.NewString()

		folder, err := req.RequireString("folder")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		args := req.GetArguments()
		filter, err := parseCriteriaArg(args["criteria"])
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		fields, err := parseFieldsArg(args["fields"])
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		log.Printf("[%s] search folder=%q headers=%t body=%t",
			reqID, folder, fields.Headers, fields.Body)

		messages, err := mb.Search(ctx, folder, filter, fields)
		if err != nil {
			log.Printf("[%s] search failed: %v", reqID, err)
			return mcp.NewToolResultError(err.Error()), nil
		}

		out := make([]map[string]any, 0, len(messages))
		for _, msg := range messages {
			entry := map[string]any{"id": msg.ID}
			if msg.Headers != nil {
				entry["headers"] = msg.Headers
			}
			if msg.Body != nil {
				entry["body"] = *msg.Body
			}
			out = append(out, entry)
		}

		log.Printf("[%s] search returned %d messages", reqID, len(out))
		return jsonResult(map[string]any{"messages": out})
	}
}

func handleFetch(mb Mailbox) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reqID := uuid.NewString()

		ids, err := parseMessageIDsArg(req.GetArguments()["message_ids"])
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		log.Printf("[%s] fetch %d messages", reqID, len(ids))

		bodies, err := mb.FetchBodies(ctx, ids)
		if err != nil {
			log.Printf("[%s] fetch failed: %v", reqID, err)
			return mcp.NewToolResultError(err.Error()), nil
		}

		return jsonResult(bodies)
	}
}

// parseCriteriaArg converts the raw criteria argument into a filter.
// A missing argument matches everything.
func parseCriteriaArg(arg any) (query.Filter, error) {
	if arg == nil {
		return query.Filter{}, nil
	}
	obj, ok := arg.(map[string]any)
	if !ok {
		return query.Filter{}, fmt.Errorf("criteria must be an object, got %T", arg)
	}
	return query.ParseFilter(obj)
}

// parseFieldsArg converts the raw fields argument. A missing argument
// requests nothing, so search returns ids only.
func parseFieldsArg(arg any) (mailbox.Fields, error) {
	if arg == nil {
		return mailbox.Fields{}, nil
	}
	obj, ok := arg.(map[string]any)
	if !ok {
		return mailbox.Fields{}, fmt.Errorf("fields must be an object, got %T", arg)
	}

	var fields mailbox.Fields
	for key, value := range obj {
		enabled, ok := value.(bool)
		if !ok {
			return mailbox.Fields{}, fmt.Errorf("fields.%s must be a boolean, got %T", key, value)
		}
		switch key {
		case "headers":
			fields.Headers = enabled
		case "body":
			fields.Body = enabled
		default:
			return mailbox.Fields{}, fmt.Errorf("unknown field selector %q", key)
		}
	}
	return fields, nil
}

func parseMessageIDsArg(arg any) ([]string, error) {
	list, ok := arg.([]any)
	if !ok {
		return nil, fmt.Errorf("message_ids must be an array of strings, got %T", arg)
	}

	ids := make([]string, 0, len(list))
	for i, item := range list {
		id, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("message_ids[%d] must be a string, got %T", i, item)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
