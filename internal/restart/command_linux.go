package restart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/samedayrules/wpable-server/internal/groutine"
	"golang.org/x/sys/unix"
)

// CommandLauncher runs an external command in its own process group so that a
// timed-out command can be killed together with its children.
type CommandLauncher struct {
	argv []string
}

// NewCommandLauncher returns a launcher for argv.
func NewCommandLauncher(argv []string) (*CommandLauncher, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errors.New("restart command cannot be empty")
	}
	return &CommandLauncher{argv: append([]string(nil), argv...)}, nil
}

// String returns the command line.
func (l *CommandLauncher) String() string {
	return strings.Join(l.argv, " ")
}

// Launch starts the command and returns immediately.
func (l *CommandLauncher) Launch() (Process, error) {
	cmd := exec.Command(l.argv[0], l.argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	p := &commandProcess{cmd: cmd}
	cmd.Stdout = &p.stdout
	cmd.Stderr = &p.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%s: %w", l, err)
	}

	p.done = groutine.Go(context.Background(), "restart-wait", func(context.Context) {
		p.err = cmd.Wait()
	})
	return p, nil
}

type commandProcess struct {
	cmd    *exec.Cmd
	stdout bytes.Buffer
	stderr bytes.Buffer
	err    error
	done   <-chan struct{} // closed once cmd.Wait returned
}

func (p *commandProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *commandProcess) Wait(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-p.done:
		return true
	case <-timer.C:
		return false
	}
}

func (p *commandProcess) Result() Result {
	select {
	case <-p.done:
	default:
		return Result{}
	}
	return Result{
		Stdout: strings.TrimSpace(p.stdout.String()),
		Stderr: strings.TrimSpace(p.stderr.String()),
		Err:    p.err,
	}
}

func (p *commandProcess) Kill() error {
	err := unix.Kill(-p.cmd.Process.Pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
