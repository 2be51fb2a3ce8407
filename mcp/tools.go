package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lukman83/adscout/internal/api"
	"github.com/lukman83/adscout/internal/models"
	"github.com/lukman83/adscout/internal/pipeline"
	"github.com/lukman83/adscout/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type tools struct {
	Deps
}

func registerTools(s *server.MCPServer, t *tools) {
	listTool := mcp.NewTool("list_listings",
		mcp.WithDescription("List stored notebook listings with their inferred RAM and screen attributes"),
		mcp.WithBoolean("only_full_info",
			mcp.Description("Only listings whose three attributes are all determined"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of listings, newest last (default: all)"),
		),
	)
	s.AddTool(listTool, t.handleListListings)

	runTool := mcp.NewTool("run_pipeline",
		mcp.WithDescription("Start a crawl and/or enrichment run in the background and return its run id"),
		mcp.WithString("mode",
			mcp.Description("scrape, process or both (default: both)"),
		),
		mcp.WithString("urls",
			mcp.Description("Comma separated search URLs (default: configured search URLs)"),
		),
		mcp.WithNumber("max_listings",
			mcp.Description("Maximum new listings per search URL (default: no limit)"),
		),
	)
	s.AddTool(runTool, t.handleRunPipeline)

	runStatusTool := mcp.NewTool("get_run",
		mcp.WithDescription("Get the status and report of a run started with run_pipeline"),
		mcp.WithString("run_id",
			mcp.Required(),
			mcp.Description("Run id returned by run_pipeline"),
		),
	)
	s.AddTool(runStatusTool, t.handleGetRun)

	getScheduleTool := mcp.NewTool("get_schedule",
		mcp.WithDescription("Get the periodic run schedule"),
	)
	s.AddTool(getScheduleTool, t.handleGetSchedule)

	setScheduleTool := mcp.NewTool("set_schedule",
		mcp.WithDescription("Set the periodic run schedule and restart the scheduler"),
		mcp.WithNumber("interval",
			mcp.Required(),
			mcp.Description("Minutes between runs"),
		),
		mcp.WithBoolean("enabled",
			mcp.Required(),
			mcp.Description("Whether scheduled runs happen"),
		),
	)
	s.AddTool(setScheduleTool, t.handleSetSchedule)
}

func (t *tools) handleListListings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	onlyFull := request.GetBool("only_full_info", false)
	limit := request.GetInt("limit", 0)

	listings, err := t.Listings.Load()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load listings: %v", err)), nil
	}
	if onlyFull {
		filtered := listings[:0]
		for _, l := range listings {
			if l.HasFullInfo() {
				filtered = append(filtered, l)
			}
		}
		listings = filtered
	}
	if limit > 0 && len(listings) > limit {
		listings = listings[len(listings)-limit:]
	}
	return jsonResult(listings)
}

func (t *tools) handleRunPipeline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mode, err := pipeline.ParseMode(request.GetString("mode", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var urls []string
	for _, u := range strings.Split(request.GetString("urls", ""), ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	req := pipeline.Request{Mode: mode, URLs: urls, MaxListings: request.GetInt("max_listings", 0)}

	body, _ := json.Marshal(map[string]any{"mode": string(mode), "urls": urls, "maxListings": req.MaxListings})
	if err := t.Validator.Validate(api.SchemaScrape, body); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	id := t.Runner.Start(req)
	return jsonResult(map[string]any{"run_id": id, "mode": mode, "urls": urls})
}

func (t *tools) handleGetRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("run_id", "")
	if id == "" {
		return mcp.NewToolResultError("run_id is required"), nil
	}
	rec, ok := t.Runner.Runs().Get(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("run %s not found", id)), nil
	}
	return jsonResult(rec)
}

func (t *tools) handleGetSchedule(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sched, err := store.ReadSchedule(t.Schedule)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read schedule: %v", err)), nil
	}
	return jsonResult(sched)
}

func (t *tools) handleSetSchedule(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sched := models.Schedule{
		Interval: request.GetInt("interval", 0),
		Enabled:  request.GetBool("enabled", true),
	}
	body, _ := json.Marshal(sched)
	if err := t.Validator.Validate(api.SchemaSchedule, body); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := t.Schedule.Write(sched); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("save schedule: %v", err)), nil
	}
	if t.Scheduler != nil {
		t.Scheduler.Restart(t.BaseContext)
	}
	return jsonResult(sched)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
