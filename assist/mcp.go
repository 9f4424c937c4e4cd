package assist

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/webguide/pagemodel"
	"github.com/hazyhaar/webguide/session"
)

// RegisterMCP registers the navigation tools on an MCP server, exposing
// the session to MCP clients as an alternative frontend to the chat
// channels. Tool calls arrive one at a time over stdio, matching the
// session's single-operator requirement.
func (a *Assistant) RegisterMCP(srv *mcp.Server) {
	type navigateReq struct {
		URL string `json:"url" jsonschema:"the URL to open"`
	}
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "webguide_navigate",
		Description: "Open a URL and return the extracted page model.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in navigateReq) (*mcp.CallToolResult, *pagemodel.Model, error) {
		if err := a.session.Navigate(ctx, in.URL); err != nil {
			return nil, nil, err
		}
		return nil, a.session.Page(), nil
	})

	type clickReq struct {
		Target string `json:"target" jsonschema:"free-text description of the link or element to click"`
	}
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "webguide_click",
		Description: "Find an element by its visible text or label and click it. Returns the new page model.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in clickReq) (*mcp.CallToolResult, *pagemodel.Model, error) {
		if err := a.session.Click(ctx, in.Target); err != nil {
			return nil, nil, err
		}
		return nil, a.session.Page(), nil
	})

	type emptyReq struct{}
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "webguide_back",
		Description: "Go back to the previously clicked-from page.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ emptyReq) (*mcp.CallToolResult, *pagemodel.Model, error) {
		if err := a.session.Back(ctx); err != nil {
			return nil, nil, err
		}
		return nil, a.session.Page(), nil
	})

	type sectionReq struct {
		Name string `json:"name" jsonschema:"free-text name of the section to read"`
	}
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "webguide_section",
		Description: "Read a section of the current page by fuzzy-matched title, following a matching link when no on-page section fits.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in sectionReq) (*mcp.CallToolResult, *session.SectionResult, error) {
		res, err := a.session.Section(ctx, in.Name)
		if err != nil {
			return nil, nil, err
		}
		return nil, res, nil
	})

	type imagesReq struct {
		Start int `json:"start,omitempty" jsonschema:"0-based index of the first image to describe"`
		Count int `json:"count,omitempty" jsonschema:"how many images to describe, default 3"`
	}
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "webguide_describe_images",
		Description: "Caption a batch of the current page's images.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in imagesReq) (*mcp.CallToolResult, *session.ImagesResult, error) {
		res, err := a.session.DescribeImages(ctx, in.Start, in.Count)
		if err != nil {
			return nil, nil, err
		}
		return nil, res, nil
	})

	type statusOut struct {
		URL     string `json:"url"`
		Loaded  bool   `json:"loaded"`
		History int    `json:"history_depth"`
		Section string `json:"current_section,omitempty"`
	}
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "webguide_status",
		Description: "Report the session's current URL, history depth, and active section.",
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ emptyReq) (*mcp.CallToolResult, statusOut, error) {
		return nil, statusOut{
			URL:     a.session.CurrentURL(),
			Loaded:  a.session.Loaded(),
			History: a.session.HistoryDepth(),
			Section: a.session.CurrentSection(),
		}, nil
	})
}

// ServeMCP runs an MCP stdio server until ctx is cancelled.
func (a *Assistant) ServeMCP(ctx context.Context, version string) error {
	srv := mcp.NewServer(&mcp.Implementation{Name: "webguide", Version: version}, nil)
	a.RegisterMCP(srv)
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("assist: mcp server: %w", err)
	}
	return nil
}
