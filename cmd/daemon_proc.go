package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// daemonState is written next to the pid file so `daemon status` can find
// the API address of a daemon started with non-default flags.
type daemonState struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"started_at"`
	DBPath    string    `json:"db_path"`
}

// pidFile is the path of a daemon pid file. Its state lives at path+".json".
type pidFile string

func (p pidFile) path() string      { return string(p) }
func (p pidFile) statePath() string { return string(p) + ".json" }

func (p pidFile) pid() (int, error) {
	data, err := os.ReadFile(p.path()) //nolint:gosec // user-configured pid path
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid in %s", p.path())
	}
	return pid, nil
}

func (p pidFile) state() (daemonState, error) {
	var st daemonState
	data, err := os.ReadFile(p.statePath()) //nolint:gosec // user-configured pid path
	if err != nil {
		return st, err
	}
	err = json.Unmarshal(data, &st)
	return st, err
}

// claimable reports an error if a live daemon already owns the file, and
// clears a stale one.
func (p pidFile) claimable() error {
	pid, err := p.pid()
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return err
	case processAlive(pid):
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}
	p.release()
	return nil
}

// claim writes the current pid and st. The state file is best effort.
func (p pidFile) claim(st daemonState) error {
	if err := p.claimable(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.path()), 0o750); err != nil {
		return fmt.Errorf("creating daemon directory: %w", err)
	}

	st.PID = os.Getpid()
	st.StartedAt = time.Now()
	if err := os.WriteFile(p.path(), []byte(strconv.Itoa(st.PID)+"\n"), 0o600); err != nil {
		return err
	}
	if data, err := json.MarshalIndent(st, "", "  "); err == nil {
		_ = os.WriteFile(p.statePath(), append(data, '\n'), 0o600)
	}
	return nil
}

func (p pidFile) release() {
	_ = os.Remove(p.path())
	_ = os.Remove(p.statePath())
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
