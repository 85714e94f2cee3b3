// Command gridstore encodes and decodes LSP28 grid pointers, reads grids and
// profiles from LUKSO networks, browses the template catalog and serves the
// marketplace HTTP API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"xdao.co/gridstore/catalog"
	"xdao.co/gridstore/chain"
	"xdao.co/gridstore/config"
	"xdao.co/gridstore/logging"
	"xdao.co/gridstore/marketplace"
	"xdao.co/gridstore/resolver"
	"xdao.co/gridstore/schema"
	"xdao.co/gridstore/storage/casregistry"

	_ "xdao.co/gridstore/storage/grpccas"
	_ "xdao.co/gridstore/storage/ipfs"
	_ "xdao.co/gridstore/storage/localfs"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// usageError marks failures caused by bad input rather than the network.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...interface{}) error {
	return usageError{fmt.Errorf(format, args...)}
}

// exactArgs is cobra.ExactArgs reported as a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func run(args []string, out, errOut io.Writer) int {
	a := &app{out: out, errOut: errOut}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	err := root.Execute()
	a.close()
	if err == nil {
		return 0
	}
	fmt.Fprintf(errOut, "error: %v\n", err)
	var ue usageError
	if errors.As(err, &ue) || strings.HasPrefix(err.Error(), "unknown command") || strings.HasPrefix(err.Error(), "required flag") {
		return 2
	}
	return 1
}

// app carries global flags and lazily built dependencies.
type app struct {
	out, errOut io.Writer

	configPath string
	network    string
	rpcURL     string
	gateway    string
	logLevel   string
	verbose    bool

	cfg config.Config
	log *zap.Logger
	net chain.Network

	store   *chain.RPCStore
	svc     *marketplace.Service
	closers []func() error
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gridstore",
		Short:         "LSP28 grid pointers, profiles and templates",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError{err} })

	f := root.PersistentFlags()
	f.StringVarP(&a.configPath, "config", "c", os.Getenv(config.EnvPrefix+"CONFIG"), "YAML config file")
	f.StringVarP(&a.network, "network", "n", "", "network name or chain id (mainnet, testnet, 42, 4201)")
	f.StringVar(&a.rpcURL, "rpc-url", "", "JSON-RPC endpoint for the selected network")
	f.StringVar(&a.gateway, "gateway", "", "IPFS gateway base URL")
	f.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	f.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		a.encodeCmd(),
		a.decodeCmd(),
		a.hashCmd(),
		a.calldataCmd(),
		a.resolveCmd(),
		a.profileCmd(),
		a.gridCmd(),
		a.templatesCmd(),
		a.applyCmd(),
		a.mirrorCmd(),
		a.serveCmd(),
	)
	return root
}

// setup loads the config file, applies the environment and then any flags
// that were set explicitly.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("network") {
		cfg.Network = a.network
	}
	if flags.Changed("gateway") {
		cfg.Gateway = a.gateway
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}
	n, err := cfg.DefaultNetwork()
	if err != nil {
		return usageError{err}
	}
	if flags.Changed("rpc-url") {
		if cfg.RPC == nil {
			cfg.RPC = make(map[string]string)
		}
		cfg.RPC[n.Name] = a.rpcURL
	}
	if err := cfg.Validate(); err != nil {
		return usageError{err}
	}

	log, err := logging.New(cfg.LogOptions())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.cfg, a.net, a.log = cfg, n, log
	return nil
}

func (a *app) resolver() (*resolver.Resolver, error) {
	opts := []resolver.Option{resolver.WithLogger(a.log)}
	if a.cfg.Mirror.Enabled() {
		cas, closeFn, err := a.cfg.Mirror.Open(casregistry.RoleClient, "")
		if err != nil {
			return nil, fmt.Errorf("open mirror: %w", err)
		}
		if closeFn != nil {
			a.closers = append(a.closers, closeFn)
		}
		opts = append(opts, resolver.WithCAS(cas))
	}
	return resolver.New(a.cfg.ResolverConfig(), opts...), nil
}

// service builds the marketplace and its chain store on first use.
func (a *app) service() (*marketplace.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}
	cat := catalog.Default()
	if a.cfg.Catalog != "" {
		var err error
		if cat, err = catalog.LoadFile(a.cfg.Catalog); err != nil {
			return nil, err
		}
	}
	res, err := a.resolver()
	if err != nil {
		return nil, err
	}
	a.store = chain.NewRPCStore(a.cfg.ChainConfig(), a.log)
	a.closers = append(a.closers, func() error { a.store.Close(); return nil })
	a.svc = marketplace.New(marketplace.Options{
		Catalog:  cat,
		Schema:   schema.NewClient(a.store, res, a.log),
		Resolver: res,
		Logger:   a.log,

		ConfirmTimeout: a.cfg.Chain.ConfirmTimeout,
	})
	a.closers = append(a.closers, func() error { a.svc.Close(); return nil })
	return a.svc, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.log != nil {
			a.log.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}

func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) context(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
