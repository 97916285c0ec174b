package relaynet

import "github.com/nullchannel/relaynet/pkg/wire"

// StepResult is what a pipeline step returns; anything other than
// StepContinue short-circuits the remainder of the pipeline.
type StepResult int

const (
	StepContinue StepResult = iota
	StepDiscard
	StepDisconnect
)

// StepParams is the mutable record passed to every pipeline step. Reader
// is populated on receive pipelines, Writer on send pipelines; exactly
// one of the two is non-nil for a given direction.
type StepParams struct {
	UID    uint64
	Meta   wire.Metadata
	Reader *wire.Reader
	Writer *wire.Writer
}

// Step is one user-supplied pipeline stage.
type Step func(*StepParams) StepResult

// Outcome is the pipeline's overall result after running its steps.
type Outcome int

const (
	OutcomeContinue Outcome = iota
	OutcomeDiscard
	OutcomeDisconnect
)

// Pipeline is an ordered list of steps run in registration order until
// one returns something other than StepContinue.
type Pipeline struct {
	steps []Step
}

func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: append([]Step(nil), steps...)}
}

// Append adds a step to the end of the pipeline.
func (p *Pipeline) Append(s Step) {
	p.steps = append(p.steps, s)
}

// Run executes the pipeline against params, returning the overall outcome.
func (p *Pipeline) Run(params *StepParams) Outcome {
	for _, step := range p.steps {
		switch step(params) {
		case StepContinue:
			continue
		case StepDiscard:
			return OutcomeDiscard
		case StepDisconnect:
			return OutcomeDisconnect
		}
	}
	return OutcomeContinue
}

// Pipelines groups the four directional pipelines a connected pair of
// endpoints needs: client->server receive/send and server->client
// receive/send. NewPipelines populates all four and every engine owns one
// set; an engine runs the two that match its role (a server runs
// client->server receive and server->client send, a client the other two).
type Pipelines struct {
	ClientToServerReceive *Pipeline
	ClientToServerSend    *Pipeline
	ServerToClientReceive *Pipeline
	ServerToClientSend    *Pipeline
}

func NewPipelines() *Pipelines {
	return &Pipelines{
		ClientToServerReceive: NewPipeline(),
		ClientToServerSend:    NewPipeline(),
		ServerToClientReceive: NewPipeline(),
		ServerToClientSend:    NewPipeline(),
	}
}
