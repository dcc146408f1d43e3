// Package mcp exposes the knowledge core to AI assistants over the Model
// Context Protocol: semantic search, grounded question answering, session
// ingestion and entity sync are offered as tools.
package mcp

import (
	"context"
	"log/slog"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lorevault/lorevault/internal/ingest"
	"github.com/lorevault/lorevault/internal/retrieval"
	"github.com/lorevault/lorevault/internal/syncer"
)

// Server wires the knowledge components into an MCP tool server.
type Server struct {
	retriever *retrieval.Retriever
	asker     *retrieval.Asker
	syncer    *syncer.Syncer
	ingestor  *ingest.Ingestor
	log       *slog.Logger
	mcp       *sdk.Server
}

// NewServer constructs the MCP server and registers its tools.
func NewServer(
	retriever *retrieval.Retriever,
	asker *retrieval.Asker,
	sync *syncer.Syncer,
	ingestor *ingest.Ingestor,
	version string,
	log *slog.Logger,
) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		retriever: retriever,
		asker:     asker,
		syncer:    sync,
		ingestor:  ingestor,
		log:       log,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "lorevault",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

// Run serves MCP requests over the transport until ctx is cancelled.
func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
