package aiassist

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
)

// Instruction sources, reported to the client so it can tell local heuristics
// apart from model output.
const (
	SourceLocal             = "local"
	SourceInference         = "inference"
	SourceInferenceFallback = "inference_fallback"
)

var identifierPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// AnalyzeInput is one vision-metrics snapshot from the capture client.
type AnalyzeInput struct {
	ProcedureID string             `json:"procedure_id"`
	StageID     string             `json:"stage_id"`
	Metrics     map[string]float64 `json:"metrics"`
}

// Validate returns the first problem with the input, nil when it is usable.
func (in *AnalyzeInput) Validate() error {
	if !identifierPattern.MatchString(in.ProcedureID) {
		return fmt.Errorf("procedure_id must match %s", identifierPattern.String())
	}
	if !identifierPattern.MatchString(in.StageID) {
		return fmt.Errorf("stage_id must match %s", identifierPattern.String())
	}
	return nil
}

// AnalyzeResult is the instruction chosen for a snapshot.
type AnalyzeResult struct {
	Instruction string `json:"instruction"`
	Source      string `json:"source"`
	Model       string `json:"model,omitempty"`
}

// InstructionProvider is the remote-model dependency of the service.
type InstructionProvider interface {
	Instruction(ctx context.Context, in AnalyzeInput) (string, error)
	Model() string
}

// Service turns metric snapshots into positioning instructions. When remote
// inference is disabled or fails, it falls back to the local heuristic table;
// analysis never returns an error to the caller.
type Service struct {
	provider InstructionProvider
	enabled  bool
	logger   *slog.Logger
}

// NewService wires the analysis service. provider may be nil when inference
// is disabled.
func NewService(provider InstructionProvider, enabled bool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{provider: provider, enabled: enabled && provider != nil, logger: logger}
}

// Analyze picks one instruction for the snapshot. Remote inference is
// preferred when enabled; any failure degrades to the local table with the
// source marked as a fallback.
func (s *Service) Analyze(ctx context.Context, in AnalyzeInput) AnalyzeResult {
	if !s.enabled {
		return AnalyzeResult{Instruction: LocalInstruction(in.Metrics), Source: SourceLocal}
	}

	instruction, err := s.provider.Instruction(ctx, in)
	if err != nil {
		s.logger.Warn("inference unavailable, using local instruction",
			"error", err, "procedure_id", in.ProcedureID, "stage_id", in.StageID)
		return AnalyzeResult{
			Instruction: LocalInstruction(in.Metrics),
			Source:      SourceInferenceFallback,
			Model:       s.provider.Model(),
		}
	}
	return AnalyzeResult{Instruction: instruction, Source: SourceInference, Model: s.provider.Model()}
}
