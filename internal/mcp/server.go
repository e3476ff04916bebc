// Package mcp exposes the file-organization toolset as a standalone MCP
// server over stdio, so any MCP client can drive the same tools the chat
// orchestrator uses.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/embykit/filem/internal/security"
	"github.com/embykit/filem/internal/tools"
)

// Server wraps the MCP SDK server and the file toolset.
type Server struct {
	mcpServer *mcp.Server
	files     *tools.Files
}

// Config holds MCP server configuration.
type Config struct {
	Name           string
	Version        string
	WorkspaceRoots []string
	Logger         *slog.Logger
}

// NewServer creates an MCP server with the file tools registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pathVal, err := security.NewPathValidator(cfg.WorkspaceRoots)
	if err != nil {
		return nil, fmt.Errorf("creating path validator: %w", err)
	}
	files, err := tools.NewFiles(pathVal, logger)
	if err != nil {
		return nil, fmt.Errorf("creating file toolset: %w", err)
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		mcpServer: mcpServer,
		files:     files,
	}
	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}
	return s, nil
}

// Run starts the MCP server on the given transport. It blocks until the
// context is cancelled or the transport closes.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}

func (s *Server) registerTools() error {
	if err := registerTool(s.mcpServer, tools.MoveFileName,
		"Move or rename a file or directory. Fails if the source is missing or the destination already exists.",
		s.files.MoveFile); err != nil {
		return err
	}
	if err := registerTool(s.mcpServer, tools.DeleteFileName,
		"Delete a file, or a directory with all its contents.",
		s.files.DeleteFile); err != nil {
		return err
	}
	return registerTool(s.mcpServer, tools.ReadStructureName,
		"List the structure of a directory as a nested tree. Optional depth bounds the recursion.",
		s.files.ReadStructure)
}

// registerTool binds one typed toolset method to the MCP server. Results are
// built inline: errors become IsError text results, success payloads are
// serialized as JSON text.
func registerTool[In any](srv *mcp.Server, name, description string, handler func(ctx context.Context, input In) (tools.Result, error)) error {
	inputSchema, err := jsonschema.For[In](nil)
	if err != nil {
		return fmt.Errorf("creating input schema for %s: %w", name, err)
	}

	tool := &mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: inputSchema,
	}

	mcp.AddTool(srv, tool, func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
		result, err := handler(ctx, in)
		if err != nil {
			return nil, nil, fmt.Errorf("system error: %w", err)
		}

		if result.Status == tools.StatusError {
			errorText := result.Message
			if result.Error != nil {
				errorText = fmt.Sprintf("Error [%s]: %s", result.Error.Code, result.Error.Message)
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: errorText}},
				IsError: true,
			}, nil, nil
		}

		text, err := json.Marshal(result)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding result: %w", err)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(text)}},
		}, nil, nil
	})
	return nil
}
