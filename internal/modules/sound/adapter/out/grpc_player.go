package out

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"mccall/internal/modules/sound/adapter/out/rpc"
	"mccall/internal/modules/sound/domain"
	soundout "mccall/internal/modules/sound/port/out"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
)

const (
	defaultStartTimeout = 3 * time.Second
	defaultCallTimeout  = 5 * time.Second
)

// GRPCPlayer plays cues through a go-plugin binary. The plugin process is
// started on first use and kept until Close.
type GRPCPlayer struct {
	binary string

	mu     sync.Mutex
	client *plugin.Client
	rpc    rpc.SoundPlayerClient
}

func NewGRPCPlayer(binary string) *GRPCPlayer {
	return &GRPCPlayer{binary: binary}
}

var _ soundout.Player = (*GRPCPlayer)(nil)

func (p *GRPCPlayer) Play(ctx context.Context, cue domain.Cue) error {
	client, err := p.connect()
	if err != nil {
		return err
	}
	callCtx, cancel := callContext(ctx, defaultCallTimeout)
	defer cancel()

	response, err := client.Play(callCtx, &rpc.PlayRequest{Cue: string(cue)})
	if err != nil {
		p.reset()
		return fmt.Errorf("play cue %s: %w", cue, err)
	}
	if !response.Played {
		return fmt.Errorf("plugin did not play cue %s: %s", cue, response.Detail)
	}
	return nil
}

// Metadata starts the plugin if needed and reports what it supports.
func (p *GRPCPlayer) Metadata(ctx context.Context) (rpc.Metadata, error) {
	client, err := p.connect()
	if err != nil {
		return rpc.Metadata{}, err
	}
	callCtx, cancel := callContext(ctx, defaultCallTimeout)
	defer cancel()
	meta, err := client.GetMetadata(callCtx)
	if err != nil {
		return rpc.Metadata{}, fmt.Errorf("get metadata: %w", err)
	}
	return *meta, nil
}

func (p *GRPCPlayer) Close() {
	p.reset()
}

func (p *GRPCPlayer) connect() (rpc.SoundPlayerClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rpc != nil && p.client != nil && !p.client.Exited() {
		return p.rpc, nil
	}
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  rpc.HandshakeConfig,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolGRPC},
		Plugins:          rpc.PluginMap(nil),
		Cmd:              exec.Command(p.binary),
		Managed:          true,
		StartTimeout:     defaultStartTimeout,
		Logger:           hclog.New(&hclog.LoggerOptions{Output: io.Discard, Level: hclog.NoLevel}),
	})
	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("start sound plugin: %w", err)
	}
	raw, err := rpcClient.Dispense(rpc.PluginMapKey)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("dispense sound plugin: %w", err)
	}
	typed, ok := raw.(rpc.SoundPlayerClient)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("sound plugin rpc client type mismatch")
	}
	p.client = client
	p.rpc = typed
	return typed, nil
}

func (p *GRPCPlayer) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		p.client.Kill()
	}
	p.client = nil
	p.rpc = nil
}

func callContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := parent.Deadline(); ok {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
