// Package process runs an external recommender script and reads its JSON
// output from stdout.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/internship-recommender/internal/ai"
	"github.com/spigell/internship-recommender/internal/scoring"
	"github.com/spigell/internship-recommender/internal/utils"
)

const (
	Provider = "process"

	defaultMaxLogLength = 200

	// waitDelay bounds how long Run waits for inherited pipes after the
	// process is killed.
	waitDelay = 3 * time.Second
)

// Config describes how the recommender script is started.
type Config struct {
	// Script is passed as the first argument to the executable. Relative
	// paths are resolved against the current directory.
	Script string `mapstructure:"script"`
	// Executables are tried in order until one starts and succeeds.
	Executables []string `mapstructure:"executables"`
	// Dir is the working directory of the process. Defaults to the script directory.
	Dir string `mapstructure:"dir"`
	// Env is appended to the current environment.
	Env []string `mapstructure:"env"`
}

// DefaultExecutables returns the interpreters tried when none are configured.
// preferred, when set, goes first.
func DefaultExecutables(preferred string) []string {
	var candidates []string
	if preferred = strings.TrimSpace(preferred); preferred != "" {
		candidates = append(candidates, preferred)
	}
	if runtime.GOOS == "windows" {
		return append(candidates, "py", "python")
	}
	return append(candidates, "python3", "python")
}

type command struct {
	name string
	args []string
	dir  string
	env  []string
}

type runner func(ctx context.Context, cmd command) (stdout, stderr []byte, err error)

type Scorer struct {
	cfg       Config
	run       runner
	logger    *zap.Logger
	maxLogLen int
}

func New(cfg Config, logger *zap.Logger) (*Scorer, error) {
	if strings.TrimSpace(cfg.Script) == "" {
		return nil, errors.New("recommender script is required")
	}
	script, err := filepath.Abs(cfg.Script)
	if err != nil {
		return nil, fmt.Errorf("resolve recommender script %q: %w", cfg.Script, err)
	}
	cfg.Script = script
	if len(cfg.Executables) == 0 {
		cfg.Executables = DefaultExecutables(os.Getenv("PYTHON_EXEC"))
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scorer{
		cfg:       cfg,
		run:       execRun,
		logger:    logger,
		maxLogLen: defaultMaxLogLength,
	}, nil
}

func (s *Scorer) Name() string { return Provider }

// Model reports the script in use.
func (s *Scorer) Model() string { return s.cfg.Script }

// Score runs the script with the sector, location and comma joined skills as
// arguments.
func (s *Scorer) Score(ctx context.Context, q scoring.Query) ([]ai.Entry, error) {
	args := []string{s.cfg.Script, q.Sector, q.Location, strings.Join(q.Skills, ", ")}

	var lastErr error
	for _, exe := range s.cfg.Executables {
		exe = strings.TrimSpace(exe)
		if exe == "" {
			continue
		}

		stdout, err := s.runOnce(ctx, exe, args)
		if err != nil {
			s.logger.Debug("recommender executable failed", zap.String("executable", exe), zap.Error(err))
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		entries, err := parseOutput(stdout)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, ai.ErrEmptyOutput
		}
		return entries, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no recommender executable configured")
	}
	return nil, lastErr
}

func (s *Scorer) runOnce(ctx context.Context, exe string, args []string) ([]byte, error) {
	stdout, stderr, err := s.run(ctx, command{name: exe, args: args, dir: s.dir(), env: s.cfg.Env})
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%s exited with code %d: %s", exe, exitErr.ExitCode(), strings.TrimSpace(string(stderr)))
		}
		return nil, fmt.Errorf("run %s: %w", exe, err)
	}

	s.logger.Debug("recommender output",
		zap.String("executable", exe),
		zap.Int("stdout_length", len(stdout)),
		zap.String("stdout_preview", utils.TruncateForLog(string(stdout), s.maxLogLen)),
	)
	return stdout, nil
}

func (s *Scorer) dir() string {
	if s.cfg.Dir != "" {
		return s.cfg.Dir
	}
	return filepath.Dir(s.cfg.Script)
}

func parseOutput(stdout []byte) ([]ai.Entry, error) {
	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var items []map[string]any
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("parse recommender output: %w. Raw: %s", err, utils.TruncateForLog(string(trimmed), defaultMaxLogLength))
	}

	return ai.DecodeEntries(items)
}

func execRun(ctx context.Context, c command) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, c.name, c.args...)
	cmd.Dir = c.dir
	cmd.WaitDelay = waitDelay
	if len(c.env) > 0 {
		cmd.Env = append(os.Environ(), c.env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
