package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/balance-indicators/internal/domain"
	"github.com/dvloznov/balance-indicators/internal/normalize"
)

// PipelineStep represents a single step in the upload pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	// Inputs.
	Raw      []byte
	Filename string
	Period   domain.Period
	Layout   normalize.Layout
	// SourceURI is set when the file was read from GCS and needs no archiving.
	SourceURI string

	// Outputs.
	ArchiveURI string
	Result     *normalize.Result
	Records    []domain.AccountRecord
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially and stops at the first
// failure.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}
