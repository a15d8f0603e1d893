package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

var ErrNotFound = errors.New("agent not found")

// Info identifies a runnable agent: an external command that reads a prompt
// on stdin and works it to completion.
type Info struct {
	ID      string
	Command string
	Args    []string
}

// Resolver maps agent identifiers to runnable agents.
type Resolver interface {
	ByIdentifier(id string) (Info, error)
}

// Request is one agent invocation.
type Request struct {
	Agent          Info
	UserInput      string
	SessionID      string
	ConversationID string
	MaxIterations  int
	AutoApprove    bool
}

type Result struct {
	Output string
}

// Executor runs an agent request to completion.
type Executor interface {
	Run(ctx context.Context, req Request) (Result, error)
}

// StaticResolver serves agents declared in configuration. An empty identifier
// resolves to the default agent when one is set.
type StaticResolver struct {
	Default string
	Agents  []Info
}

func (r *StaticResolver) ByIdentifier(id string) (Info, error) {
	want := strings.TrimSpace(id)
	if want == "" {
		want = strings.TrimSpace(r.Default)
	}
	if want == "" {
		return Info{}, fmt.Errorf("%w: no agent requested and no default configured", ErrNotFound)
	}
	for _, a := range r.Agents {
		if a.ID == want {
			return a, nil
		}
	}
	return Info{}, fmt.Errorf("%w: %s", ErrNotFound, want)
}

// CommandExecutor shells out to the agent command, feeding the prompt on
// stdin and passing run parameters through the environment.
type CommandExecutor struct {
	Log zerolog.Logger
}

func (e *CommandExecutor) Run(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Agent.Command) == "" {
		return Result{}, fmt.Errorf("agent %s has no command configured", req.Agent.ID)
	}
	cmd := exec.CommandContext(ctx, req.Agent.Command, req.Agent.Args...)
	cmd.Stdin = strings.NewReader(req.UserInput)
	cmd.Env = append(cmd.Environ(),
		"JAZZ_SESSION_ID="+req.SessionID,
		"JAZZ_CONVERSATION_ID="+req.ConversationID,
		"JAZZ_MAX_ITERATIONS="+strconv.Itoa(req.MaxIterations),
		"JAZZ_AUTO_APPROVE="+strconv.FormatBool(req.AutoApprove),
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	e.Log.Debug().Str("agent", req.Agent.ID).Str("session", req.SessionID).Msg("starting agent run")
	if err := cmd.Run(); err != nil {
		return Result{Output: out.String()}, fmt.Errorf("agent %s: %w", req.Agent.ID, err)
	}
	return Result{Output: out.String()}, nil
}
