package api

import (
	"context"

	"github.com/crewtools/rosterwatch/app/config"
	"github.com/crewtools/rosterwatch/app/roster"
	"github.com/crewtools/rosterwatch/app/tasks"
)

// PipelineInterface is the handler's view of the poll pipeline.
type PipelineInterface interface {
	RunManual(ctx context.Context) (tasks.Result, error)
	ConfirmRevision(ctx context.Context) error
	Reset(ctx context.Context) error
	State(ctx context.Context) (roster.RevisionState, error)
}

var _ PipelineInterface = (*tasks.Pipeline)(nil)

type Handler struct {
	pipeline PipelineInterface
	settings *config.Store
	version  string
}
