package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Command is one external program invocation.
type Command struct {
	Binary string
	Args   []string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Binary}, c.Args...), " ")
}

// Executor abstracts command execution for testability.
type Executor interface {
	// Run executes cmd and returns its stdout.
	Run(ctx context.Context, cmd Command) ([]byte, error)
	// Pipe connects the stdout of each command to the stdin of the next and
	// waits for all of them. Any failing stage fails the pipeline.
	Pipe(ctx context.Context, cmds []Command) error
}

const stderrTailBytes = 4096

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, c Command) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.Binary, c.Args...) //nolint:gosec
	var stdout bytes.Buffer
	stderr := &tailBuffer{limit: stderrTailBytes}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), toolError(ctx, c, stderr.String(), err)
	}
	return stdout.Bytes(), nil
}

func (commandExecutor) Pipe(ctx context.Context, cmds []Command) error {
	if len(cmds) == 0 {
		return errors.New("empty pipeline")
	}

	procs := make([]*exec.Cmd, len(cmds))
	stderrs := make([]*tailBuffer, len(cmds))
	for i, c := range cmds {
		procs[i] = exec.CommandContext(ctx, c.Binary, c.Args...) //nolint:gosec
		stderrs[i] = &tailBuffer{limit: stderrTailBytes}
		procs[i].Stderr = stderrs[i]
	}
	procs[len(procs)-1].Stdout = io.Discard

	var parentEnds []*os.File
	closeParentEnds := func() {
		for _, f := range parentEnds {
			_ = f.Close()
		}
		parentEnds = nil
	}
	for i := 0; i < len(procs)-1; i++ {
		r, w, err := os.Pipe()
		if err != nil {
			closeParentEnds()
			return fmt.Errorf("create pipe: %w", err)
		}
		procs[i].Stdout = w
		procs[i+1].Stdin = r
		parentEnds = append(parentEnds, r, w)
	}

	started := 0
	var startErr error
	for i, proc := range procs {
		if err := proc.Start(); err != nil {
			startErr = toolError(ctx, cmds[i], "", err)
			break
		}
		started++
	}
	// The children hold their own copies; closing ours lets EOF propagate.
	closeParentEnds()

	waitErrs := make([]error, started)
	var wg sync.WaitGroup
	for i := 0; i < started; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			waitErrs[i] = procs[i].Wait()
		}(i)
	}
	wg.Wait()

	if startErr != nil {
		return startErr
	}
	for i, err := range waitErrs {
		if err != nil {
			return toolError(ctx, cmds[i], stderrs[i].String(), err)
		}
	}
	return nil
}

func toolError(ctx context.Context, c Command, stderr string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("%w (%v)", ctxErr, err)
	}
	return &Error{Tool: c.Binary, Args: append([]string(nil), c.Args...), Stderr: stderr, Err: err}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
