package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"xdao.co/collapse/storage"
	"xdao.co/collapse/storage/casconfig"
	"xdao.co/collapse/storage/casregistry"
	"xdao.co/collapse/storage/grpccas"

	_ "xdao.co/collapse/storage/badgercas"
	_ "xdao.co/collapse/storage/ipfs"
	_ "xdao.co/collapse/storage/localfs"
	_ "xdao.co/collapse/storage/memory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("collapse-casd", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	listen := fs.String("listen", "127.0.0.1:7777", "Listen address")
	backend := fs.String("backend", "localfs", "CAS backend name")
	opts := fs.StringToString("backend-opt", nil, "Backend option key=value (repeatable)")
	casConfig := fs.String("cas-config", "", "CAS config file (YAML or JSON); overrides --backend")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")
	logLevel := fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	maxMsg := fs.Int("max-msg-bytes", 16<<20, "Maximum gRPC message size")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *listBackends {
		for _, b := range casregistry.List(casregistry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(out, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}

	level, err := zapcore.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --log-level: %v\n", err)
		return 2
	}
	logger := newLogger(errOut, level)
	defer func() { _ = logger.Sync() }()

	var (
		cas     storage.CAS
		closeFn func() error
	)
	if *casConfig != "" {
		cfg, lerr := casconfig.LoadFile(*casConfig)
		if lerr != nil {
			logger.Error("load cas config", zap.String("path", *casConfig), zap.Error(lerr))
			return 2
		}
		cas, closeFn, err = cfg.Open(casregistry.UsageDaemon, "")
	} else {
		cas, closeFn, err = casregistry.Open(*backend, casregistry.UsageDaemon, casregistry.Options(*opts))
	}
	if err != nil {
		logger.Error("open backend", zap.String("backend", *backend), zap.Error(err))
		return 2
	}
	if closeFn != nil {
		defer closeFn()
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		logger.Error("listen", zap.String("addr", *listen), zap.Error(err))
		return 1
	}

	logger.Info("listening", zap.String("addr", lis.Addr().String()), zap.String("backend", *backend))
	if err := serve(ctx, lis, cas, logger, grpc.MaxRecvMsgSize(*maxMsg), grpc.MaxSendMsgSize(*maxMsg)); err != nil {
		logger.Error("serve", zap.Error(err))
		return 1
	}
	logger.Info("stopped")
	return 0
}

func newLogger(w io.Writer, level zapcore.Level) *zap.Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(w), level)
	return zap.New(core).Named("casd")
}

// serve runs a CAS gRPC server on lis until ctx is done, then stops
// gracefully.
func serve(ctx context.Context, lis net.Listener, cas storage.CAS, logger *zap.Logger, opts ...grpc.ServerOption) error {
	opts = append(opts, grpc.ChainUnaryInterceptor(logUnary(logger)))
	s := grpc.NewServer(opts...)
	grpccas.RegisterCASServer(s, &grpccas.Server{CAS: cas})

	errc := make(chan error, 1)
	go func() { errc <- s.Serve(lis) }()
	select {
	case <-ctx.Done():
		s.GracefulStop()
		<-errc
		return nil
	case err := <-errc:
		return err
	}
}

func logUnary(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("code", status.Code(err).String()),
		}
		if err != nil {
			logger.Warn("rpc", append(fields, zap.Error(err))...)
		} else {
			logger.Debug("rpc", fields...)
		}
		return resp, err
	}
}
