package grpccas

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"xdao.co/collapse/storage"
	"xdao.co/collapse/storage/casregistry"
)

// Option keys read by the "grpc" backend.
const (
	OptTarget      = "target"
	OptDialTimeout = "dial-timeout"
	OptTimeout     = "timeout"
	OptMaxMsgBytes = "max-msg-bytes"
)

const defaultDialTimeout = 5 * time.Second

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "grpc",
		Description: "gRPC CAS client (talks to collapse-casd)",
		Usage:       casregistry.UsageCLI,
		Keys:        []string{OptTarget, OptDialTimeout, OptTimeout, OptMaxMsgBytes},
		Open:        open,
	})
}

func open(opts casregistry.Options) (storage.CAS, func() error, error) {
	target := strings.TrimSpace(opts[OptTarget])
	if target == "" {
		return nil, nil, fmt.Errorf("grpccas: missing %q option", OptTarget)
	}
	dial := DialOptions{Timeout: defaultDialTimeout}
	var err error
	if v := opts[OptDialTimeout]; v != "" {
		if dial.Timeout, err = time.ParseDuration(v); err != nil {
			return nil, nil, fmt.Errorf("grpccas: %s: %w", OptDialTimeout, err)
		}
	}
	var rpcTimeout time.Duration
	if v := opts[OptTimeout]; v != "" {
		if rpcTimeout, err = time.ParseDuration(v); err != nil {
			return nil, nil, fmt.Errorf("grpccas: %s: %w", OptTimeout, err)
		}
	}
	if v := opts[OptMaxMsgBytes]; v != "" {
		if dial.MaxMsgBytes, err = strconv.Atoi(v); err != nil {
			return nil, nil, fmt.Errorf("grpccas: %s: %w", OptMaxMsgBytes, err)
		}
	}
	client, err := Dial(target, dial)
	if err != nil {
		return nil, nil, err
	}
	client.Timeout = rpcTimeout
	return client, client.Close, nil
}
