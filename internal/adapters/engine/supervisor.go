package engine

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	perr "otp4gb/internal/platform/errors"
	"otp4gb/internal/platform/logger"
	ptime "otp4gb/internal/platform/time"
)

// Engine jar and graph layout constants
const (
	EngineVersion = "2.1.0"
	GraphFileName = "graph.obj"
)

// JarName returns the engine jar file name expected under bin/
func JarName() string { return fmt.Sprintf("otp-%s-shaded.jar", EngineVersion) }

// GraphSubdir is the graph directory relative to the run folder
func GraphSubdir() string { return filepath.Join("graphs", "filtered") }

// GraphSubpath is the built graph file relative to the run folder
func GraphSubpath() string { return filepath.Join(GraphSubdir(), GraphFileName) }

// JavaCommand builds the base java invocation for the engine jar
func JavaCommand(heap, jarPath string) []string {
	return []string{
		"java",
		"-Xmx" + heap,
		"--add-opens", "java.base/java.util=ALL-UNNAMED",
		"--add-opens", "java.base/java.io=ALL-UNNAMED",
		"-jar", jarPath,
	}
}

// State is the supervisor's view of the engine process
type State string

// Process lifecycle states
const (
	StateNotStarted   State = "not-started"
	StateStarting     State = "starting"
	StateHealthy      State = "healthy"
	StateStopping     State = "stopping"
	StateStopped      State = "stopped"
	StatePortConflict State = "port-conflict"
)

// Supervisor defaults
const (
	defaultHeap            = "25G"
	defaultPort            = 8080
	defaultCheckWait       = 30 * time.Second
	defaultCheckRetries    = 10
	defaultStopWait        = 60 * time.Second
	defaultReclaimAttempts = 5
	defaultReclaimWait     = 2 * time.Second
)

// SupervisorOptions configures the Supervisor
type SupervisorOptions struct {
	// BaseDir is the run folder the engine is launched in; the graph
	// lives under graphs/filtered and logs under logs/
	BaseDir string
	// JarPath is the resolved engine jar, normally bin/otp-2.1.0-shaded.jar
	JarPath string
	Port    int
	// Heap is the -Xmx value, e.g. 25G
	Heap string

	// CheckWait is the fixed pause between health probes, CheckRetries
	// the probe budget during startup
	CheckWait    time.Duration
	CheckRetries int
	// StopWait bounds the graceful shutdown before the process is killed
	StopWait time.Duration

	ReclaimAttempts int
	ReclaimWait     time.Duration
}

// Supervisor owns the engine child process: start, poll until healthy,
// reclaim the port from stale instances, stop. Nothing else touches the
// process handle; other components only ever see the base URL
type Supervisor struct {
	opts   SupervisorOptions
	client *Client
	log    logger.Logger

	mu      sync.Mutex
	state   State
	cmd     *exec.Cmd
	logFile *os.File
	done    chan struct{}
	waitErr error

	sleep     func(ctx context.Context, d time.Duration) error
	launch    func(cmd *exec.Cmd) error
	listeners func(ctx context.Context, port int) ([]int32, error)
	terminate func(ctx context.Context, pid int32, force bool) error
}

// NewSupervisor creates a Supervisor with defaults filled in
func NewSupervisor(o SupervisorOptions) *Supervisor {
	if o.Port <= 0 {
		o.Port = defaultPort
	}
	if o.Heap == "" {
		o.Heap = defaultHeap
	}
	if o.CheckWait <= 0 {
		o.CheckWait = defaultCheckWait
	}
	if o.CheckRetries <= 0 {
		o.CheckRetries = defaultCheckRetries
	}
	if o.StopWait <= 0 {
		o.StopWait = defaultStopWait
	}
	if o.ReclaimAttempts <= 0 {
		o.ReclaimAttempts = defaultReclaimAttempts
	}
	if o.ReclaimWait <= 0 {
		o.ReclaimWait = defaultReclaimWait
	}
	return &Supervisor{
		opts:      o,
		client:    NewClient(Options{BaseURL: fmt.Sprintf("http://localhost:%d", o.Port)}),
		log:       *logger.Named("supervisor"),
		state:     StateNotStarted,
		sleep:     sleepCtx,
		launch:    func(cmd *exec.Cmd) error { return cmd.Start() },
		listeners: portListeners,
		terminate: terminatePID,
	}
}

// Client returns the HTTP client pointed at the supervised engine
func (s *Supervisor) Client() *Client { return s.client }

// URL returns the engine base URL
func (s *Supervisor) URL() string { return s.client.BaseURL() }

// State returns the current lifecycle state
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Start launches the engine and blocks until it answers health probes.
// Anything already answering on the port is treated as a stale instance
// and its process is terminated before launch
func (s *Supervisor) Start(ctx context.Context) error {
	s.setState(StateStarting)

	if up, err := s.check(ctx, 0, false); err != nil {
		return err
	} else if up {
		s.log.Warn().Int("port", s.opts.Port).Msg("engine already answering on port, reclaiming")
		if err := s.reclaimPort(ctx); err != nil {
			s.setState(StatePortConflict)
			return err
		}
	}

	logPath := filepath.Join(s.opts.BaseDir, "logs",
		"otp_server-"+time.Now().Format(ptime.DateStamp)+".log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeStartup, "create engine log dir")
	}
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeStartup, "open engine log %s", logPath)
	}

	args := append(JavaCommand(s.opts.Heap, s.opts.JarPath),
		GraphSubdir(), "--load", "--port", strconv.Itoa(s.opts.Port))
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = s.opts.BaseDir
	cmd.Stdout = f
	cmd.Stderr = f

	s.log.Info().Str("log", logPath).Msg("starting engine")
	s.log.Debug().Strs("command", args).Msg("engine command")

	if err := s.launch(cmd); err != nil {
		_ = f.Close()
		s.setState(StateStopped)
		return perr.Wrapf(err, perr.ErrorCodeStartup, "launch engine")
	}

	s.mu.Lock()
	s.cmd = cmd
	s.logFile = f
	if cmd.Process != nil {
		s.done = make(chan struct{})
		go func() {
			err := cmd.Wait()
			s.mu.Lock()
			s.waitErr = err
			s.mu.Unlock()
			close(s.done)
		}()
	}
	s.mu.Unlock()

	if _, err := s.check(ctx, s.opts.CheckRetries, true); err != nil {
		s.setState(StateStopped)
		return err
	}
	s.setState(StateHealthy)
	s.log.Info().Msg("engine started")
	return nil
}

// Healthy probes the engine once
func (s *Supervisor) Healthy(ctx context.Context) bool {
	up, _ := s.check(ctx, 0, false)
	return up
}

// check polls the engine status endpoint with a fixed wait between
// attempts. With raiseError the probe budget is a hard startup
// requirement; without it exhaustion simply reports false
func (s *Supervisor) check(ctx context.Context, retries int, raiseError bool) (bool, error) {
	var last error
	for attempt := 0; ; attempt++ {
		err := s.client.Ping(ctx)
		if err == nil {
			return true, nil
		}
		last = err

		if raiseError && s.exited() {
			s.mu.Lock()
			werr := s.waitErr
			s.mu.Unlock()
			if werr != nil {
				last = werr
			}
			return false, perr.Wrapf(last, perr.ErrorCodeStartup,
				"engine process exited before becoming healthy")
		}
		if attempt >= retries {
			if raiseError {
				return false, perr.Wrapf(last, perr.ErrorCodeStartup,
					"engine health check: maximum retries exceeded")
			}
			return false, nil
		}
		s.log.Info().Int("retry", attempt+1).Err(err).Msg("engine not available yet")
		if serr := s.sleep(ctx, s.opts.CheckWait); serr != nil {
			if raiseError {
				return false, perr.Wrapf(serr, perr.ErrorCodeStartup, "engine health check interrupted")
			}
			return false, nil
		}
	}
}

// exited reports whether the child process has terminated
func (s *Supervisor) exited() bool {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return true
	default:
		return false
	}
}

// Stop shuts the engine down: graceful terminate, bounded wait, then a
// kill, then a port re-probe that reclaims the socket from anything
// still answering. A supervisor that never launched is a no-op
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	cmd := s.cmd
	done := s.done
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil || s.exited() {
		s.log.Info().Msg("engine is not running")
		return nil
	}

	s.setState(StateStopping)
	s.log.Info().Msg("stopping engine")

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		s.log.Warn().Err(err).Msg("engine terminate signal failed")
	}

	select {
	case <-done:
	case <-time.After(s.opts.StopWait):
		s.log.Warn().Dur("waited", s.opts.StopWait).Msg("engine did not exit in time, killing")
		if err := cmd.Process.Kill(); err != nil {
			s.log.Warn().Err(err).Msg("engine kill failed")
		}
		select {
		case <-done:
		case <-time.After(5 * time.Second):
		}
	}

	s.mu.Lock()
	if s.logFile != nil {
		_ = s.logFile.Close()
		s.logFile = nil
	}
	s.mu.Unlock()

	// a respawned or wedged instance keeps answering after the wait
	if up, _ := s.check(ctx, 0, false); up {
		s.log.Warn().Msg("engine still answering after stop, reclaiming port")
		if err := s.reclaimPort(ctx); err != nil {
			s.setState(StatePortConflict)
			return err
		}
	}

	s.setState(StateStopped)
	s.log.Info().Msg("engine stopped")
	return nil
}

// reclaimPort terminates whatever owns the listening socket, escalating
// to a kill on later attempts. Failure to free the port is fatal and
// distinct from a normal not-running state
func (s *Supervisor) reclaimPort(ctx context.Context) error {
	for attempt := 0; attempt < s.opts.ReclaimAttempts; attempt++ {
		pids, err := s.listeners(ctx, s.opts.Port)
		if err != nil {
			return perr.Wrapf(err, perr.ErrorCodeStartup, "inspect listeners on port %d", s.opts.Port)
		}
		if len(pids) == 0 {
			return nil
		}
		for _, pid := range pids {
			s.log.Warn().
				Int32("pid", pid).
				Int("port", s.opts.Port).
				Bool("force", attempt > 0).
				Msg("terminating process holding engine port")
			if err := s.terminate(ctx, pid, attempt > 0); err != nil {
				s.log.Warn().Int32("pid", pid).Err(err).Msg("terminate failed")
			}
		}
		if err := s.sleep(ctx, s.opts.ReclaimWait); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeStartup, "port reclaim interrupted")
		}
	}

	pids, err := s.listeners(ctx, s.opts.Port)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeStartup, "inspect listeners on port %d", s.opts.Port)
	}
	if len(pids) > 0 {
		return perr.Newf(perr.ErrorCodeConflict, "port %d could not be reclaimed, still held by %v", s.opts.Port, pids)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
