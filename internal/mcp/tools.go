package mcp

import (
	"context"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lorevault/lorevault/internal/retrieval"
	"github.com/lorevault/lorevault/pkg/knowledge"
)

type SearchKnowledgeInput struct {
	CampaignID    string `json:"campaign_id" jsonschema:"campaign to search"`
	Query         string `json:"query" jsonschema:"natural-language search text"`
	Limit         int    `json:"limit,omitempty" jsonschema:"maximum number of top hits"`
	MacroLocation string `json:"macro_location,omitempty" jsonschema:"current broad location, boosts matching scenes"`
	MicroLocation string `json:"micro_location,omitempty" jsonschema:"current fine-grained location"`
}

type SearchKnowledgeOutput struct {
	// Excerpts are in chronological order, not relevance order.
	Excerpts []string `json:"excerpts"`
}

type AskQuestionInput struct {
	CampaignID string `json:"campaign_id" jsonschema:"campaign to consult"`
	Question   string `json:"question" jsonschema:"the question to answer from campaign memory"`
}

type AskQuestionOutput struct {
	Answer string `json:"answer"`
}

type SyncEntityInput struct {
	CampaignID string `json:"campaign_id" jsonschema:"campaign the entity belongs to"`
	Kind       string `json:"kind" jsonschema:"entity kind: npc, location, character, quest, item, monster, faction or artifact"`
	Name       string `json:"name" jsonschema:"canonical entity name"`
	Force      bool   `json:"force,omitempty" jsonschema:"regenerate even when the cached description is current"`
}

type SyncEntityOutput struct {
	Found       bool   `json:"found"`
	Description string `json:"description,omitempty"`
}

type SyncAllDirtyInput struct {
	CampaignID string `json:"campaign_id" jsonschema:"campaign to sweep"`
	Kind       string `json:"kind" jsonschema:"entity kind to sweep"`
}

type SyncAllDirtyOutput struct {
	Synced int `json:"synced"`
}

type IngestSessionInput struct {
	SessionID string `json:"session_id" jsonschema:"session whose transcript should be (re-)ingested"`
}

type IngestSessionOutput struct {
	Status string `json:"status"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "search_knowledge",
		Description: "Semantic search over campaign memory; returns chronologically ordered excerpts",
	}, s.handleSearchKnowledge)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "ask_question",
		Description: "Answer a question grounded in retrieved campaign memory",
	}, s.handleAskQuestion)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "sync_entity",
		Description: "Return an entity's description, regenerating it first if stale",
	}, s.handleSyncEntity)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "sync_all_dirty",
		Description: "Resynchronize every stale entity of a kind in a campaign",
	}, s.handleSyncAllDirty)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "ingest_session",
		Description: "Chunk, embed and index a finished session transcript",
	}, s.handleIngestSession)
}

func (s *Server) handleSearchKnowledge(ctx context.Context, req *sdk.CallToolRequest, input SearchKnowledgeInput) (*sdk.CallToolResult, SearchKnowledgeOutput, error) {
	if input.CampaignID == "" || input.Query == "" {
		return nil, SearchKnowledgeOutput{}, fmt.Errorf("campaign_id and query are required")
	}
	scene := retrieval.Scene{
		MacroLocation: input.MacroLocation,
		MicroLocation: input.MicroLocation,
	}
	excerpts, err := s.retriever.SearchKnowledge(ctx, input.CampaignID, input.Query, input.Limit, scene)
	if err != nil {
		return nil, SearchKnowledgeOutput{}, err
	}
	return nil, SearchKnowledgeOutput{Excerpts: excerpts}, nil
}

func (s *Server) handleAskQuestion(ctx context.Context, req *sdk.CallToolRequest, input AskQuestionInput) (*sdk.CallToolResult, AskQuestionOutput, error) {
	if input.CampaignID == "" || input.Question == "" {
		return nil, AskQuestionOutput{}, fmt.Errorf("campaign_id and question are required")
	}
	answer, err := s.asker.AskQuestion(ctx, input.CampaignID, input.Question, nil, retrieval.Scene{})
	if err != nil {
		return nil, AskQuestionOutput{}, err
	}
	return nil, AskQuestionOutput{Answer: answer}, nil
}

func (s *Server) handleSyncEntity(ctx context.Context, req *sdk.CallToolRequest, input SyncEntityInput) (*sdk.CallToolResult, SyncEntityOutput, error) {
	kind := knowledge.Kind(input.Kind)
	if !kind.IsValid() {
		return nil, SyncEntityOutput{}, fmt.Errorf("unknown entity kind %q", input.Kind)
	}
	if input.CampaignID == "" || input.Name == "" {
		return nil, SyncEntityOutput{}, fmt.Errorf("campaign_id and name are required")
	}
	desc, err := s.syncer.SyncIfNeeded(ctx, kind, input.CampaignID, input.Name, input.Force)
	if err != nil {
		return nil, SyncEntityOutput{}, err
	}
	if desc == nil {
		return nil, SyncEntityOutput{Found: false}, nil
	}
	return nil, SyncEntityOutput{Found: true, Description: *desc}, nil
}

func (s *Server) handleSyncAllDirty(ctx context.Context, req *sdk.CallToolRequest, input SyncAllDirtyInput) (*sdk.CallToolResult, SyncAllDirtyOutput, error) {
	kind := knowledge.Kind(input.Kind)
	if !kind.IsValid() {
		return nil, SyncAllDirtyOutput{}, fmt.Errorf("unknown entity kind %q", input.Kind)
	}
	if input.CampaignID == "" {
		return nil, SyncAllDirtyOutput{}, fmt.Errorf("campaign_id is required")
	}
	count, err := s.syncer.SyncAllDirty(ctx, kind, input.CampaignID)
	if err != nil {
		return nil, SyncAllDirtyOutput{}, err
	}
	return nil, SyncAllDirtyOutput{Synced: count}, nil
}

func (s *Server) handleIngestSession(ctx context.Context, req *sdk.CallToolRequest, input IngestSessionInput) (*sdk.CallToolResult, IngestSessionOutput, error) {
	if input.SessionID == "" {
		return nil, IngestSessionOutput{}, fmt.Errorf("session_id is required")
	}
	if err := s.ingestor.IngestSession(ctx, input.SessionID); err != nil {
		return nil, IngestSessionOutput{}, err
	}
	return nil, IngestSessionOutput{Status: "ingested"}, nil
}
