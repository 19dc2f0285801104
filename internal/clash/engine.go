package clash

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/MrSnakeDoc/clashfun/internal/domain"
	"github.com/MrSnakeDoc/clashfun/internal/logger"
)

const (
	configFile    = "config.yaml"
	readyPoll     = 100 * time.Millisecond
	stopGrace     = 3 * time.Second
	DefaultPort   = 7890
	DefaultAddr   = "127.0.0.1:9090"
	DefaultBinary = "mihomo"
)

var errNotStarted = errors.New("proxy engine is not running")

// Engine runs mihomo (or a compatible core) as a child process and drives
// it through its controller API.
type Engine struct {
	opt        Options
	log        logger.Logger
	controller *Controller
	configPath string

	// command builds the child process; replaced in tests.
	command func(name string, args ...string) *exec.Cmd

	mu      sync.Mutex
	applied string
	cmd     *exec.Cmd
	exited  chan struct{}
	err     error
}

func NewEngine(opt Options, log logger.Logger) *Engine {
	if opt.Binary == "" {
		opt.Binary = DefaultBinary
	}
	if opt.MixedPort == 0 {
		opt.MixedPort = DefaultPort
	}
	if opt.Controller == "" {
		opt.Controller = DefaultAddr
	}
	if opt.WorkDir == "" {
		opt.WorkDir = filepath.Join(os.TempDir(), "clashfun")
	}
	return &Engine{
		opt:        opt,
		log:        log.With(logger.Component("core"), logger.String("binary", filepath.Base(opt.Binary))),
		controller: NewController(opt.Controller, opt.Secret),
		configPath: filepath.Join(opt.WorkDir, configFile),
		command:    exec.Command,
	}
}

// ConfigPath is where the rendered runtime config lives.
func (e *Engine) ConfigPath() string { return e.configPath }

// Apply renders node into the runtime config file.
func (e *Engine) Apply(ctx context.Context, node *domain.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := RenderConfig(node, e.opt)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(e.configPath, data); err != nil {
		return fmt.Errorf("write runtime config: %w", err)
	}
	e.mu.Lock()
	e.applied = node.Name
	e.mu.Unlock()
	e.log.Debug("runtime config written", logger.Node(node.Name), logger.String("path", e.configPath))
	return nil
}

// Start launches the child process and waits until its controller answers.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.cmd != nil {
		e.mu.Unlock()
		return errors.New("proxy engine already started")
	}
	cmd := e.command(e.opt.Binary, "-d", e.opt.WorkDir, "-f", e.configPath)
	stdout := e.logWriter("stdout")
	stderr := e.logWriter("stderr")
	cmd.Stdout, cmd.Stderr = stdout, stderr
	if err := cmd.Start(); err != nil {
		e.mu.Unlock()
		_ = stdout.Close()
		_ = stderr.Close()
		return fmt.Errorf("spawn %s: %w", e.opt.Binary, err)
	}
	exited := make(chan struct{})
	e.cmd, e.exited, e.err = cmd, exited, nil
	e.mu.Unlock()

	go func() {
		err := cmd.Wait()
		_ = stdout.Close()
		_ = stderr.Close()
		e.mu.Lock()
		e.err = err
		if e.cmd == cmd {
			e.cmd = nil
		}
		e.mu.Unlock()
		close(exited)
	}()

	e.log.Info("proxy engine spawned", logger.String("binary", e.opt.Binary), logger.Int("pid", cmd.Process.Pid))

	if err := e.waitReady(ctx, exited); err != nil {
		e.kill(cmd, exited)
		return err
	}
	return nil
}

func (e *Engine) waitReady(ctx context.Context, exited <-chan struct{}) error {
	ticker := time.NewTicker(readyPoll)
	defer ticker.Stop()
	for {
		if _, err := e.controller.Version(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("proxy engine not ready: %w", ctx.Err())
		case <-exited:
			e.mu.Lock()
			err := e.err
			e.mu.Unlock()
			return fmt.Errorf("proxy engine exited during startup: %v", err)
		case <-ticker.C:
		}
	}
}

// Reload asks the running engine to re-read the runtime config, then points
// the selector group at the applied node so the core confirms it knows it.
func (e *Engine) Reload(ctx context.Context) error {
	if !e.running() {
		return errNotStarted
	}
	if err := e.controller.ReloadConfig(ctx, e.configPath); err != nil {
		return err
	}
	e.mu.Lock()
	node := e.applied
	e.mu.Unlock()
	if node == "" {
		return nil
	}
	if err := e.controller.SelectProxy(ctx, GroupName, node); err != nil {
		return fmt.Errorf("select %q after reload: %w", node, err)
	}
	return nil
}

// Stop interrupts the child process and kills it if it does not exit in time.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	cmd, exited := e.cmd, e.exited
	e.mu.Unlock()
	if cmd == nil {
		return nil
	}

	if runtime.GOOS == "windows" {
		_ = cmd.Process.Kill()
	} else if err := cmd.Process.Signal(os.Interrupt); err != nil {
		_ = cmd.Process.Kill()
	}

	select {
	case <-exited:
	case <-time.After(stopGrace):
		e.kill(cmd, exited)
	case <-ctx.Done():
		e.kill(cmd, exited)
	}
	e.log.Info("proxy engine stopped")
	return nil
}

func (e *Engine) kill(cmd *exec.Cmd, exited <-chan struct{}) {
	_ = cmd.Process.Kill()
	<-exited
}

// Check reports an error when the child has exited or its controller is unresponsive.
func (e *Engine) Check(ctx context.Context) error {
	if !e.running() {
		return errNotStarted
	}
	_, err := e.controller.Version(ctx)
	return err
}

func (e *Engine) running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cmd != nil
}

// logWriter forwards each output line of the child to the logger.
func (e *Engine) logWriter(stream string) io.WriteCloser {
	pr, pw := io.Pipe()
	go func() {
		sc := bufio.NewScanner(pr)
		for sc.Scan() {
			e.log.Debug(sc.Text(), logger.String("stream", stream))
		}
		_ = pr.Close()
	}()
	return pw
}
