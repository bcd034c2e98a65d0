package network

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Commander runs host commands. It exists so service management can be faked in tests.
type Commander interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args ...string) error
}

// ExecCommander runs commands through os/exec.
type ExecCommander struct{}

func (ExecCommander) LookPath(file string) (string, error) { return exec.LookPath(file) }

func (ExecCommander) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			return fmt.Errorf("%s failed: %w", name, err)
		}
		return fmt.Errorf("%s failed: %w: %s", name, err, msg)
	}
	return nil
}

// ServiceManager restarts the local Tor service.
type ServiceManager interface {
	Name() string
	Available() bool
	Restart(ctx context.Context) error
}

type commandManager struct {
	name   string
	binary string
	args   []string
	sudo   bool
	cmd    Commander
}

func (m *commandManager) Name() string { return m.name }

func (m *commandManager) Available() bool {
	_, err := m.cmd.LookPath(m.binary)
	return err == nil
}

func (m *commandManager) Restart(ctx context.Context) error {
	if m.sudo {
		return m.cmd.Run(ctx, "sudo", append([]string{"-n", m.binary}, m.args...)...)
	}
	return m.cmd.Run(ctx, m.binary, m.args...)
}

// SystemManagers returns the Tor restart mechanisms in the order they are tried:
// systemd first, then SysV service.
func SystemManagers(cmd Commander, sudo bool) []ServiceManager {
	return []ServiceManager{
		&commandManager{name: "systemctl", binary: "systemctl", args: []string{"restart", "tor"}, sudo: sudo, cmd: cmd},
		&commandManager{name: "service", binary: "service", args: []string{"tor", "restart"}, sudo: sudo, cmd: cmd},
	}
}

// sudoAvailable reports whether sudo can run without a password prompt.
func sudoAvailable(ctx context.Context, cmd Commander) bool {
	if _, err := cmd.LookPath("sudo"); err != nil {
		return false
	}
	return cmd.Run(ctx, "sudo", "-n", "true") == nil
}
