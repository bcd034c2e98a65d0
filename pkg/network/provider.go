// Package network decides which egress address the extractor and ffmpeg present upstream.
package network

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/debargha2001/ytdlx/pkg/logging"
	"github.com/debargha2001/ytdlx/pkg/yterr"
)

// Circuit names the egress path.
type Circuit string

const (
	CircuitDirect Circuit = "direct"
	CircuitTor    Circuit = "tor"
)

// Identity is the egress address used for one operation.
type Identity struct {
	Address string  `json:"address"`
	Circuit Circuit `json:"circuit"`
	Host    string  `json:"-"`
	Port    int     `json:"port,omitempty"`
	// Warning is set when Tor was requested but the operation fell back to direct egress.
	Warning error `json:"-"`
}

// IsTor reports whether traffic should go through the SOCKS proxy.
func (i Identity) IsTor() bool { return i.Circuit == CircuitTor && i.Port > 0 }

// ProxyURL is the socks5 URL for Tor identities and "" otherwise.
func (i Identity) ProxyURL() string {
	if !i.IsTor() {
		return ""
	}
	host := i.Host
	if host == "" {
		host = "127.0.0.1"
	}
	return "socks5://" + host + ":" + strconv.Itoa(i.Port)
}

// Options configures a Provider.
type Options struct {
	Echo     IPEcho
	Commands Commander
	// Managers overrides the default systemctl/service restart chain.
	Managers []ServiceManager
	TorHost  string
	TorPorts []int
	Retry    RetryPolicy
	// GOOS defaults to runtime.GOOS.
	GOOS   string
	Logger hclog.Logger
}

// Provider resolves a network Identity per request. Nothing is cached between calls.
type Provider struct {
	echo     IPEcho
	commands Commander
	managers []ServiceManager
	torHost  string
	torPorts []int
	retry    RetryPolicy
	goos     string
	logger   hclog.Logger
}

func NewProvider(opts Options) *Provider {
	p := &Provider{
		echo:     opts.Echo,
		commands: opts.Commands,
		managers: opts.Managers,
		torHost:  opts.TorHost,
		torPorts: opts.TorPorts,
		retry:    opts.Retry,
		goos:     opts.GOOS,
		logger:   logging.OrNull(opts.Logger).Named("network"),
	}
	if p.echo == nil {
		p.echo = NewHTTPEcho("https://checkip.amazonaws.com", 0)
	}
	if p.commands == nil {
		p.commands = ExecCommander{}
	}
	if p.torHost == "" {
		p.torHost = "127.0.0.1"
	}
	if len(p.torPorts) == 0 {
		p.torPorts = []int{9050, 9150}
	}
	if p.retry.Attempts == 0 {
		p.retry = DefaultRetryPolicy()
	}
	if p.goos == "" {
		p.goos = runtime.GOOS
	}
	return p
}

// Identity returns the egress identity for one operation. When useTor is set and
// no circuit can be established, the direct identity is returned with Warning set;
// an error is only returned when no address at all could be determined.
func (p *Provider) Identity(ctx context.Context, useTor, verbose bool) (Identity, error) {
	var (
		direct    string
		directErr error
		sudo      bool
	)

	unsupported := p.goos == "windows" || p.goos == "plan9"

	var g errgroup.Group
	g.Go(func() error {
		directErr = p.retry.Do(ctx, func(ctx context.Context) error {
			addr, err := p.echo.Direct(ctx)
			if err != nil {
				return err
			}
			direct = addr
			return nil
		})
		return nil
	})
	if useTor && !unsupported && p.managers == nil {
		g.Go(func() error {
			sudo = sudoAvailable(ctx, p.commands)
			return nil
		})
	}
	_ = g.Wait()

	if directErr != nil {
		logging.Diag(p.logger, verbose, "direct ip probe failed", "error", directErr)
	} else {
		logging.Diag(p.logger, verbose, "direct ip", "address", direct)
	}

	if !useTor {
		if directErr != nil {
			return Identity{}, fmt.Errorf("failed to determine egress ip: %w", directErr)
		}
		return Identity{Address: direct, Circuit: CircuitDirect}, nil
	}

	if unsupported {
		p.logger.Warn("tor is unsupported on this platform, using direct egress", "os", p.goos)
		return p.fallback(direct, directErr, "tor is unsupported on "+p.goos)
	}

	if id, ok := p.probePorts(ctx, verbose); ok {
		return id, nil
	}

	managers := p.managers
	if managers == nil {
		managers = SystemManagers(p.commands, sudo)
	}
	for _, m := range managers {
		if !m.Available() {
			logging.Diag(p.logger, verbose, "service manager unavailable", "manager", m.Name())
			continue
		}
		if err := m.Restart(ctx); err != nil {
			p.logger.Warn("tor restart failed", "manager", m.Name(), "error", err)
			continue
		}
		logging.Diag(p.logger, verbose, "tor restarted", "manager", m.Name())
		if id, ok := p.probePorts(ctx, verbose); ok {
			return id, nil
		}
	}

	p.logger.Warn("no tor circuit reachable, using direct egress", "ports", p.torPorts)
	return p.fallback(direct, directErr, "no tor circuit reachable on any probed port")
}

func (p *Provider) probePorts(ctx context.Context, verbose bool) (Identity, bool) {
	for _, port := range p.torPorts {
		var addr string
		err := p.retry.Do(ctx, func(ctx context.Context) error {
			a, err := p.echo.ViaSOCKS(ctx, p.torHost, port)
			if err != nil {
				return err
			}
			addr = a
			return nil
		})
		if err != nil {
			logging.Diag(p.logger, verbose, "tor port probe failed", "port", port, "error", err)
			continue
		}
		logging.Diag(p.logger, verbose, "tor circuit", "port", port, "address", addr)
		return Identity{Address: addr, Circuit: CircuitTor, Host: p.torHost, Port: port}, true
	}
	return Identity{}, false
}

func (p *Provider) fallback(direct string, directErr error, reason string) (Identity, error) {
	if directErr != nil {
		return Identity{}, fmt.Errorf("failed to determine egress ip: %w", directErr)
	}
	return Identity{
		Address: direct,
		Circuit: CircuitDirect,
		Warning: yterr.New(yterr.KindNetworkDegraded, "%s", reason).WithHint("start tor or drop useTor"),
	}, nil
}
