//go:build unix

package shell

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	tperrors "github.com/DeBrosOfficial/tidewave/pkg/errors"
	"github.com/DeBrosOfficial/tidewave/pkg/logging"
)

// pipeStream is the parent's non-blocking read end of one child stream.
type pipeStream struct {
	name string
	fd   int
	open bool
}

func newPipe(name string) (*pipeStream, *os.File, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return nil, nil, err
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, nil, err
	}
	return &pipeStream{name: name, fd: fds[0], open: true}, os.NewFile(uintptr(fds[1]), name), nil
}

func (p *pipeStream) close() {
	p.open = false
	if p.fd >= 0 {
		unix.Close(p.fd)
		p.fd = -1
	}
}

// lookPath resolves name the way the child would see it: a relative path
// with a separator is taken from the configured working directory, a bare
// name is searched in PATH.
func (e *Executor) lookPath(name string) (string, error) {
	if e.cfg.Dir != "" && strings.ContainsRune(name, filepath.Separator) && !filepath.IsAbs(name) {
		name = filepath.Join(e.cfg.Dir, name)
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", err
	}
	// The child starts in cfg.Dir, so a relative result would be resolved twice.
	return filepath.Abs(path)
}

func (e *Executor) run(argv []string, cw *ChunkWriter) (runResult, error) {
	path, err := e.lookPath(argv[0])
	if err != nil {
		return runResult{}, tperrors.NewExecutionError(argv, err)
	}

	stdout, stdoutW, err := newPipe("stdout")
	if err != nil {
		return runResult{}, err
	}
	defer stdout.close()
	stderr, stderrW, err := newPipe("stderr")
	if err != nil {
		stdoutW.Close()
		return runResult{}, err
	}
	defer stderr.close()

	cmd := exec.Command(path, argv[1:]...)
	cmd.Args[0] = argv[0]
	cmd.Dir = e.cfg.Dir
	if len(e.cfg.Env) > 0 {
		cmd.Env = e.cfg.Env
	}
	// nil Stdin is /dev/null: the child's input is closed from the start.
	cmd.Stdin = nil
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	startErr := cmd.Start()
	stdoutW.Close()
	stderrW.Close()
	if startErr != nil {
		return runResult{}, tperrors.NewExecutionError(argv, startErr)
	}

	res, terminated, pumpErr := e.pump(cmd, []*pipeStream{stdout, stderr}, cw)

	var killTimer *time.Timer
	if terminated {
		pid := cmd.Process.Pid
		killTimer = time.AfterFunc(e.cfg.KillGrace, func() {
			_ = unix.Kill(-pid, unix.SIGKILL)
		})
	}
	waitErr := cmd.Wait()
	if killTimer != nil {
		killTimer.Stop()
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return res, waitErr
	}
	res.status = exitStatus(cmd.ProcessState)
	if pumpErr != nil {
		// The client went away mid-stream; the status write will fail too.
		e.logger.ComponentWarn(logging.ComponentShell, "output stream aborted",
			zap.Int("pid", cmd.Process.Pid), zap.Error(pumpErr))
	}
	return res, nil
}

// pump multiplexes both streams with unix.Poll until each reaches EOF, the
// output ceiling is hit, or the client stops accepting writes. Ordering is
// preserved within a stream but not between them. terminated reports whether
// the child was signaled.
func (e *Executor) pump(cmd *exec.Cmd, streams []*pipeStream, cw *ChunkWriter) (res runResult, terminated bool, err error) {
	buf := make([]byte, readBufferSize)
	timeoutMs := int(e.cfg.PollInterval / time.Millisecond)
	if timeoutMs <= 0 {
		timeoutMs = 1
	}

	pfds := make([]unix.PollFd, 0, len(streams))
	ready := make([]*pipeStream, 0, len(streams))
	for {
		pfds = pfds[:0]
		ready = ready[:0]
		for _, s := range streams {
			if s.open {
				pfds = append(pfds, unix.PollFd{Fd: int32(s.fd), Events: unix.POLLIN})
				ready = append(ready, s)
			}
		}
		if len(pfds) == 0 {
			return res, false, nil
		}

		n, perr := unix.Poll(pfds, timeoutMs)
		if perr != nil {
			if perr == unix.EINTR {
				continue
			}
			e.terminate(cmd)
			return res, true, perr
		}
		if n == 0 {
			continue
		}

		for i, pfd := range pfds {
			if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) == 0 {
				continue
			}
			s := ready[i]
			nr, rerr := unix.Read(s.fd, buf)
			switch {
			case rerr == unix.EAGAIN || rerr == unix.EINTR:
				continue
			case rerr != nil:
				s.open = false
				continue
			case nr == 0:
				s.open = false
				continue
			}

			if res.outputBytes+int64(nr) > e.cfg.MaxOutputBytes {
				res.truncated = true
				werr := cw.Data(truncationNotice(e.cfg.MaxOutputBytes))
				e.logger.ComponentWarn(logging.ComponentShell, "output ceiling reached; terminating command",
					zap.Int("pid", cmd.Process.Pid), zap.Int64("limit", e.cfg.MaxOutputBytes))
				e.terminate(cmd)
				return res, true, werr
			}
			if werr := cw.Data(buf[:nr]); werr != nil {
				e.terminate(cmd)
				return res, true, werr
			}
			res.outputBytes += int64(nr)
		}
	}
}

// terminate sends SIGTERM to the child's process group. run escalates to
// SIGKILL if the child outlives the grace period.
func (e *Executor) terminate(cmd *exec.Cmd) {
	if err := unix.Kill(-cmd.Process.Pid, unix.SIGTERM); err != nil {
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}
}

// exitStatus reports the exit code, or 128+signal for a signaled child.
func exitStatus(ps *os.ProcessState) int {
	if ps == nil {
		return StatusEngineFailure
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return ps.ExitCode()
}
