package canteenadvisor

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// StageLogger is the interface for recording pipeline stages of a recommendation.
type StageLogger interface {
	LogStage(stage StageLog) error
}

const (
	StageRetrieve  = "retrieve"
	StageFilter    = "filter"
	StageRank      = "rank"
	StageGenerate  = "generate"
	StageReconcile = "reconcile"
)

// NewStageLogFilePath returns a file path based on a cleaned up model name or id to make it easier to identify logs produced with various models.
func NewStageLogFilePath(model string) string {
	if model == "" {
		model = "default"
	}
	return fmt.Sprintf(
		"./logs/%d.%s.json",
		time.Now().Unix(),
		strings.NewReplacer(":", "_", "/", "_").Replace(strings.ToLower(model)),
	)
}

// StageLog represents a single stage of one recommendation request.
type StageLog struct {
	RequestID string        `json:"request_id"`
	Stage     string        `json:"stage"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration_ns"`
	InputLen  int           `json:"input_len"`
	OutputLen int           `json:"output_len"`
	Detail    string        `json:"detail,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// FileStageLogger accumulates stages and writes them on Flush.
type FileStageLogger struct {
	mu     sync.Mutex
	stages []StageLog
	writer io.Writer
}

// NewFileStageLogger creates a new file-based stage logger
func NewFileStageLogger(writer io.Writer) *FileStageLogger {
	return &FileStageLogger{
		stages: make([]StageLog, 0),
		writer: writer,
	}
}

// LogStage appends the stage to the buffer (does not flush immediately)
func (l *FileStageLogger) LogStage(stage StageLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stages = append(l.stages, stage)
	return nil
}

// Flush writes all accumulated stages to the writer
func (l *FileStageLogger) Flush() error {
	if l.writer == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.MarshalIndent(map[string]any{
		"advisor_session": map[string]any{
			"timestamp": time.Now(),
			"stages":    l.stages,
		},
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stage log: %w", err)
	}

	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write stage log: %w", err)
	}

	l.stages = l.stages[:0]
	return nil
}

// NoOpStageLogger discards all log entries
type NoOpStageLogger struct{}

func NewNoOpStageLogger() *NoOpStageLogger {
	return &NoOpStageLogger{}
}

func (nop *NoOpStageLogger) LogStage(stage StageLog) error {
	return nil
}

// StdoutStageLogger logs each stage as a JSON line to stdout (for Lambda/CloudWatch)
type StdoutStageLogger struct {
	out io.Writer
}

func NewStdoutStageLogger() *StdoutStageLogger {
	return &StdoutStageLogger{out: os.Stdout}
}

// LogStage writes the stage as a JSON line
func (l *StdoutStageLogger) LogStage(stage StageLog) error {
	data, err := json.Marshal(stage)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(l.out, string(data))
	return err
}
