package tool

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medright/mac-computer-use-v1/internal/application/port/output"
)

const (
	shellPath      = "/bin/bash"
	maxShellOutput = 64000
)

// shellSession keeps a single bash process alive across commands so that
// working directory and environment changes persist. Commands are framed
// with a per-session sentinel that carries the exit status and the
// working directory after each command.
type shellSession struct {
	mu       sync.Mutex
	id       string
	sentinel string
	timeout  time.Duration
	logger   output.LoggerPort

	cmd   *exec.Cmd
	stdin io.WriteCloser
	lines chan string
	cwd   string
	dead  bool
}

type shellResult struct {
	output   string
	exitCode int
}

func newShellSession(timeout time.Duration, logger output.LoggerPort) *shellSession {
	id := uuid.New().String()
	return &shellSession{
		id:       id,
		sentinel: "__DONE_" + id + "__",
		timeout:  timeout,
		logger:   logger,
	}
}

// Run executes one command and blocks until the sentinel comes back or the
// timeout fires. On timeout the bash process is killed and the next Run
// starts a fresh one in the last known working directory.
func (s *shellSession) Run(ctx context.Context, command string) (*shellResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureStarted(); err != nil {
		return nil, err
	}

	framed := fmt.Sprintf("%s\necho \"%s:$?:$PWD\"\n", command, s.sentinel)
	if _, err := io.WriteString(s.stdin, framed); err != nil {
		s.kill()
		return nil, fmt.Errorf("failed to write to shell: %w", err)
	}

	var out strings.Builder
	truncated := false
	appendLine := func(line string) {
		if out.Len() >= maxShellOutput {
			truncated = true
			return
		}
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		remaining := maxShellOutput - out.Len()
		if len(line) > remaining {
			line = line[:remaining]
			truncated = true
		}
		out.WriteString(line)
	}

	deadline := time.NewTimer(s.timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			s.kill()
			return nil, ctx.Err()

		case <-deadline.C:
			s.kill()
			return nil, fmt.Errorf("command timed out after %s; the shell session has been restarted", s.timeout)

		case line, ok := <-s.lines:
			if !ok {
				s.kill()
				return nil, fmt.Errorf("shell session ended unexpectedly")
			}
			// Output without a trailing newline glues onto the sentinel
			// echo, so the sentinel can appear mid-line. Anything before
			// it is still command output.
			if i := strings.Index(line, s.sentinel+":"); i >= 0 {
				if i > 0 {
					appendLine(line[:i])
				}
				code, cwd := s.parseSentinel(line[i:])
				s.cwd = cwd
				result := out.String()
				if truncated {
					result += "\n<output truncated>"
				}
				return &shellResult{output: result, exitCode: code}, nil
			}
			appendLine(line)
		}
	}
}

// Restart discards the current process. The next command starts a new one.
func (s *shellSession) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kill()
	s.cwd = ""
}

func (s *shellSession) Close() {
	s.Restart()
}

func (s *shellSession) ensureStarted() error {
	if s.cmd != nil && !s.dead {
		return nil
	}

	cmd := exec.Command(shellPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open shell stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open shell stdout: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", shellPath, err)
	}

	lines := make(chan string, 256)
	go func() {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	s.cmd = cmd
	s.stdin = stdin
	s.lines = lines
	s.dead = false

	if s.logger != nil {
		s.logger.Debug("shell session started", "session", s.id, "pid", cmd.Process.Pid)
	}

	// Restore the working directory from before a kill, if any.
	if s.cwd != "" {
		framed := fmt.Sprintf("cd %q\n", s.cwd)
		if _, err := io.WriteString(s.stdin, framed); err != nil {
			s.kill()
			return fmt.Errorf("failed to restore working directory: %w", err)
		}
	}
	return nil
}

func (s *shellSession) kill() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		go func(cmd *exec.Cmd) { _ = cmd.Wait() }(s.cmd)
	}
	s.cmd = nil
	s.stdin = nil
	s.lines = nil
	s.dead = true
}

func (s *shellSession) parseSentinel(line string) (int, string) {
	rest := strings.TrimPrefix(line, s.sentinel+":")
	code := 0
	cwd := ""
	if i := strings.Index(rest, ":"); i >= 0 {
		if n, err := strconv.Atoi(rest[:i]); err == nil {
			code = n
		}
		cwd = rest[i+1:]
	}
	return code, cwd
}
