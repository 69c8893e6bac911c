// Package docker runs generated pandas/plotly code inside pre-warmed,
// network-less containers and converts the resulting figure.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/usage-dashboard/internal/apperror"
	"github.com/sakif/usage-dashboard/internal/chart"
	"github.com/sakif/usage-dashboard/internal/executor"
	"github.com/sakif/usage-dashboard/internal/frame"
)

// timeoutExitCode mirrors the exit status of the unix timeout command.
const timeoutExitCode = 124

const maxStderr = 2000

// Engine implements executor.Engine using Docker.
type Engine struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	pool   *Pool
}

// runResult is the raw outcome of one exec.
type runResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// New connects to the Docker daemon, makes sure the sandbox image is
// present and starts the container pool.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Engine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	if err := ensureImage(ctx, cli, cfg.Image, logger); err != nil {
		cli.Close()
		return nil, err
	}

	e := &Engine{
		cli:    cli,
		config: cfg,
		logger: logger,
		pool:   NewPool(cli, cfg, logger),
	}
	e.pool.Start()
	return e, nil
}

func ensureImage(ctx context.Context, cli *client.Client, ref string, logger *slog.Logger) error {
	if _, err := cli.ImageInspect(ctx, ref); err == nil {
		return nil
	} else if !client.IsErrNotFound(err) {
		return fmt.Errorf("failed to inspect image %s: %w", ref, err)
	}

	pullCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	logger.Info("pulling sandbox image", slog.String("image", ref))
	reader, err := cli.ImagePull(pullCtx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	defer reader.Close()
	// the pull only completes once the progress stream is drained
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	logger.Info("sandbox image is ready", slog.String("image", ref))
	return nil
}

// Close shuts down the pool and the docker client.
func (e *Engine) Close() error {
	e.pool.Stop()
	return e.cli.Close()
}

func (e *Engine) Contract() executor.Contract {
	return executor.Contract{
		Language:   "python",
		DataVar:    "df",
		PlotAlias:  "px",
		TableAlias: "pd",
		OutputVar:  "fig",
		Vocabulary: "Python 3 with pandas (as pd) and plotly.express (as px) already imported. " +
			"Date columns are parsed as datetimes. There is no network access and the filesystem is read-only.",
	}
}

// Execute runs code with the table streamed to the script's stdin as CSV.
func (e *Engine) Execute(ctx context.Context, code string, table *frame.Frame) (*chart.Figure, error) {
	payload, err := encodeCSV(table)
	if err != nil {
		return nil, fmt.Errorf("encoding table: %w", err)
	}
	res, err := e.run(ctx, buildScript(code, table), payload)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("sandbox run finished",
		slog.Int("exitCode", res.ExitCode),
		slog.Duration("duration", res.Duration),
	)

	switch {
	case res.ExitCode == timeoutExitCode:
		return nil, apperror.Execution(fmt.Sprintf("execution timed out after %s", e.config.Timeout))
	case res.ExitCode != 0:
		return nil, apperror.Execution(lastLines(res.Stderr, maxStderr))
	}
	fig, err := parseResult(res.Stdout)
	if err != nil {
		return nil, apperror.Execution(err.Error())
	}
	return fig, nil
}

func (e *Engine) run(ctx context.Context, script string, stdin []byte) (*runResult, error) {
	start := time.Now()

	containerID, err := e.pool.GetContainer(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container from pool: %w", err)
	}
	// containers are single-use
	defer e.pool.Discard(containerID)

	executeCtx, executeCancel := context.WithTimeout(ctx, e.config.Timeout)
	defer executeCancel()

	execResp, err := e.cli.ContainerExecCreate(executeCtx, containerID, container.ExecOptions{
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          []string{"python", "-c", script},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exec: %w", err)
	}

	attachResp, err := e.cli.ContainerExecAttach(executeCtx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to attach to exec: %w", err)
	}
	defer attachResp.Close()

	go func() {
		_, _ = attachResp.Conn.Write(stdin)
		_ = attachResp.CloseWrite()
	}()

	var stdout, stderr bytes.Buffer
	done := make(chan struct{})
	go func() {
		_, _ = stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader)
		close(done)
	}()

	res := &runResult{}
	select {
	case <-done:
		inspectResp, err := e.cli.ContainerExecInspect(ctx, execResp.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect exec: %w", err)
		}
		res.ExitCode = inspectResp.ExitCode
	case <-executeCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		res.ExitCode = timeoutExitCode
		stderr.WriteString("\nExecution timed out.\n")
	}

	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	res.Duration = time.Since(start)
	return res, nil
}

// lastLines keeps the tail of a traceback, where the error message is.
func lastLines(s string, limit int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "execution failed"
	}
	if len(s) > limit {
		s = s[len(s)-limit:]
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
	}
	return s
}
