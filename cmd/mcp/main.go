package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/verilens/verilens/internal/bootstrap"
	"github.com/verilens/verilens/internal/config"
	"github.com/verilens/verilens/internal/core/domain"
	"github.com/verilens/verilens/internal/observability/logging"
)

// The MCP binary exposes the analysis pipeline to local agent tooling over
// stdio. All tool calls act as the single configured MCP identity, so results
// land in that user's history like any API request.
func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer app.Close()

	srv := server.NewMCPServer("verilens", "1.0.0",
		server.WithToolCapabilities(false),
	)

	analyzeURL := mcp.NewTool("analyze_url",
		mcp.WithDescription("Run the dual-pass authenticity analysis on a media file fetched from a URL and return the stored result."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("HTTP or HTTPS URL of the image, video or audio file to analyze."),
		),
		mcp.WithString("lang",
			mcp.Description("Report language, en or ar. Defaults to en."),
		),
	)
	srv.AddTool(analyzeURL, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rawURL, err := req.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		lang := domain.Language(req.GetString("lang", string(domain.LanguageEnglish)))

		result, err := app.AnalyzeUC.AnalyzeURL(ctx, cfg.MCPUserID, lang, rawURL)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
		}
		return toolResult(result)
	})

	getAnalysis := mcp.NewTool("get_analysis",
		mcp.WithDescription("Fetch a previously stored analysis result by its id."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Analysis id returned by analyze_url."),
		),
	)
	srv.AddTool(getAnalysis, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result, err := app.ResultsUC.Get(ctx, id, cfg.MCPUserID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
		}
		return toolResult(result)
	})

	logger.Info("mcp server on stdio", slog.String("user", cfg.MCPUserID))
	if err := server.ServeStdio(srv); err != nil {
		logger.Error("mcp server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func toolResult(result *domain.AnalysisResult) (*mcp.CallToolResult, error) {
	// Previews are large base64 blobs, not useful in a tool transcript.
	trimmed := *result
	trimmed.Preview = ""
	trimmed.PreviewType = ""

	payload, err := json.MarshalIndent(trimmed, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}
