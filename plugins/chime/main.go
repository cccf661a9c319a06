package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"mccall/internal/modules/sound/adapter/out/rpc"

	"github.com/hashicorp/go-plugin"
)

// bells maps a cue to the terminal bell pattern written for it.
var bells = map[string]string{
	"step": "\a",
	"end":  "\a\a",
}

type server struct {
	silent bool
}

func (s *server) GetMetadata(_ context.Context, _ *rpc.Empty) (*rpc.Metadata, error) {
	return &rpc.Metadata{Name: "chime", Version: "1.0.0", Cues: []string{"end", "step"}}, nil
}

func (s *server) Play(_ context.Context, in *rpc.PlayRequest) (*rpc.PlayResponse, error) {
	bell, ok := bells[in.Cue]
	if !ok {
		return &rpc.PlayResponse{Detail: fmt.Sprintf("unknown cue %q", in.Cue)}, nil
	}
	if s.silent {
		return &rpc.PlayResponse{Played: true, Detail: "silent"}, nil
	}
	tty, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0)
	if err != nil {
		return &rpc.PlayResponse{Detail: fmt.Sprintf("open tty: %v", err)}, nil
	}
	defer tty.Close()
	if _, err := tty.WriteString(bell); err != nil {
		return &rpc.PlayResponse{Detail: fmt.Sprintf("write bell: %v", err)}, nil
	}
	return &rpc.PlayResponse{Played: true}, nil
}

func main() {
	silent := strings.TrimSpace(os.Getenv("MCCALL_CHIME_SILENT")) != ""
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: rpc.HandshakeConfig,
		Plugins:         rpc.PluginMap(&server{silent: silent}),
		GRPCServer:      plugin.DefaultGRPCServer,
	})
}
