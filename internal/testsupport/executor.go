package testsupport

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"camerasync/internal/metadata"
	"camerasync/internal/tools"
)

// StubExecutor records tool invocations and fabricates their outputs so the
// conversion chain can run without any image tools installed.
type StubExecutor struct {
	mu sync.Mutex
	// Metadata is returned, rendered as exiftool output, for metadata reads
	// keyed by file base name.
	Metadata map[string]metadata.Tags
	// FailBinary makes every invocation of that binary fail.
	FailBinary string
	// FailOnArg makes any invocation whose arguments contain the value fail.
	FailOnArg string

	commands []tools.Command
	pipes    [][]tools.Command
}

// NewStubExecutor returns an executor with no metadata and no failures.
func NewStubExecutor() *StubExecutor {
	return &StubExecutor{Metadata: map[string]metadata.Tags{}}
}

func (s *StubExecutor) Run(_ context.Context, cmd tools.Command) ([]byte, error) {
	s.mu.Lock()
	s.commands = append(s.commands, cmd)
	s.mu.Unlock()

	if err := s.failure(cmd); err != nil {
		return nil, err
	}
	if len(cmd.Args) == 1 && filepath.Base(cmd.Binary) == "exiftool" {
		return s.renderMetadata(cmd.Args[0]), nil
	}
	if out := outputPath(cmd); out != "" {
		if err := touch(out); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (s *StubExecutor) Pipe(_ context.Context, cmds []tools.Command) error {
	s.mu.Lock()
	s.pipes = append(s.pipes, cmds)
	s.mu.Unlock()

	for _, cmd := range cmds {
		if err := s.failure(cmd); err != nil {
			return err
		}
	}
	last := cmds[len(cmds)-1]
	if len(last.Args) == 0 {
		return errors.New("pipeline sink has no output path")
	}
	return touch(last.Args[len(last.Args)-1])
}

// Commands returns the recorded single-command invocations.
func (s *StubExecutor) Commands() []tools.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tools.Command(nil), s.commands...)
}

// Pipes returns the recorded pipelines.
func (s *StubExecutor) Pipes() [][]tools.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]tools.Command(nil), s.pipes...)
}

// CommandsFor returns the recorded invocations of binary.
func (s *StubExecutor) CommandsFor(binary string) []tools.Command {
	var out []tools.Command
	for _, cmd := range s.Commands() {
		if cmd.Binary == binary {
			out = append(out, cmd)
		}
	}
	return out
}

func (s *StubExecutor) failure(cmd tools.Command) error {
	if s.FailBinary != "" && cmd.Binary == s.FailBinary {
		return &tools.Error{Tool: cmd.Binary, Args: cmd.Args, Stderr: "stub failure", Err: errors.New("exit status 1")}
	}
	if s.FailOnArg != "" {
		for _, arg := range cmd.Args {
			if strings.Contains(arg, s.FailOnArg) {
				return &tools.Error{Tool: cmd.Binary, Args: cmd.Args, Stderr: "stub failure", Err: errors.New("exit status 1")}
			}
		}
	}
	return nil
}

func (s *StubExecutor) renderMetadata(path string) []byte {
	s.mu.Lock()
	tags := s.Metadata[filepath.Base(path)]
	s.mu.Unlock()

	var b strings.Builder
	b.WriteString("File Name                       : " + filepath.Base(path) + "\n")
	for key, value := range tags {
		b.WriteString(key + " : " + value + "\n")
	}
	return []byte(b.String())
}

// outputPath finds the file a tool invocation is expected to write.
func outputPath(cmd tools.Command) string {
	for i, arg := range cmd.Args {
		if strings.HasPrefix(arg, "--output=") {
			return strings.TrimPrefix(arg, "--output=")
		}
		if arg == "-o" && i+1 < len(cmd.Args) {
			return cmd.Args[i+1]
		}
		if arg == "-TagsFromFile" {
			return ""
		}
	}
	if filepath.Base(cmd.Binary) == "convert" && len(cmd.Args) > 1 {
		return cmd.Args[len(cmd.Args)-1]
	}
	return ""
}

func touch(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("stub output\n"), 0o644)
}
