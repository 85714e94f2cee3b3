// Command gridstore-casd serves a content mirror over gRPC so several
// gridstore instances can share fetched grid and profile documents.
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"xdao.co/gridstore/logging"
	"xdao.co/gridstore/storage/casregistry"
	"xdao.co/gridstore/storage/grpccas"

	_ "xdao.co/gridstore/storage/ipfs"
	_ "xdao.co/gridstore/storage/localfs"
)

func main() {
	if err := newCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type daemon struct {
	listen       string
	backend      string
	opts         map[string]string
	maxMsgBytes  int
	logLevel     string
	listBackends bool
}

func newCmd(out io.Writer) *cobra.Command {
	d := &daemon{}
	cmd := &cobra.Command{
		Use:          "gridstore-casd",
		Short:        "Serve a content mirror over gRPC",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if d.listBackends {
				for _, b := range casregistry.List(casregistry.RoleDaemon) {
					if b.Description == "" {
						fmt.Fprintln(out, b.Name)
						continue
					}
					fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
				}
				return nil
			}
			log, err := logging.New(logging.Options{Level: d.logLevel})
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			lis, err := net.Listen("tcp", d.listen)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return d.serve(ctx, lis, log)
		},
	}
	f := cmd.Flags()
	f.StringVar(&d.listen, "listen", "127.0.0.1:7777", "listen address")
	f.StringVar(&d.backend, "backend", "localfs", "mirror backend name")
	f.StringToStringVarP(&d.opts, "opt", "o", nil, "backend option key=value (e.g. dir=/var/cache/gridstore)")
	f.IntVar(&d.maxMsgBytes, "max-msg-bytes", 16<<20, "largest document accepted or returned")
	f.StringVar(&d.logLevel, "log-level", "info", "log level")
	f.BoolVar(&d.listBackends, "list-backends", false, "list supported backends and exit")
	return cmd
}

// serve runs until ctx ends and then stops gracefully.
func (d *daemon) serve(ctx context.Context, lis net.Listener, log *zap.Logger) error {
	cas, closeFn, err := casregistry.OpenWithConfig(d.backend, casregistry.RoleDaemon, casregistry.Options(d.opts))
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer func() {
			if err := closeFn(); err != nil {
				log.Warn("close backend", zap.Error(err))
			}
		}()
	}

	s := grpc.NewServer(
		grpc.UnaryInterceptor(grpccas.LoggingInterceptor(log)),
		grpc.MaxRecvMsgSize(d.maxMsgBytes),
		grpc.MaxSendMsgSize(d.maxMsgBytes),
	)
	grpccas.RegisterMirrorServer(s, &grpccas.Server{CAS: cas})

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		s.GracefulStop()
	}()

	log.Info("mirror listening", zap.String("addr", lis.Addr().String()), zap.String("backend", d.backend))
	return s.Serve(lis)
}
