package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/spf13/cobra"

	"xdao.co/gridstore/cidutil"
	"xdao.co/gridstore/storage"
	"xdao.co/gridstore/storage/bundle"
	"xdao.co/gridstore/storage/casregistry"
)

func (a *app) mirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Manage the content mirror",
		Long: `The mirror caches documents by CID (CIDv1, raw, sha2-256) in front of the
gateway. Configure it under "mirror" in the config file.`,
	}
	cmd.AddCommand(a.mirrorBackendsCmd(), a.mirrorExportCmd(), a.mirrorImportCmd())
	return cmd
}

func (a *app) openMirror() (storage.CAS, error) {
	if !a.cfg.Mirror.Enabled() {
		return nil, usagef("no mirror configured")
	}
	cas, closeFn, err := a.cfg.Mirror.Open(casregistry.RoleClient, "")
	if err != nil {
		return nil, err
	}
	if closeFn != nil {
		a.closers = append(a.closers, closeFn)
	}
	return cas, nil
}

func (a *app) mirrorBackendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List mirror backends linked into this binary",
		Args:  exactArgs(0),
		RunE: func(*cobra.Command, []string) error {
			for _, b := range casregistry.List(casregistry.RoleClient) {
				fmt.Fprintf(a.out, "%s\t%s\n", b.Name, b.Description)
			}
			return nil
		},
	}
}

// parseEntry accepts "cid", "ipfs://cid" or "label=cid".
func parseEntry(s string) (bundle.Entry, error) {
	var e bundle.Entry
	if label, rest, ok := strings.Cut(s, "="); ok {
		e.Label, s = label, rest
	}
	if id, rest, ok := cidutil.ParseLocator(s); ok && rest == "" {
		e.CID = id
		return e, nil
	}
	id, err := cid.Decode(s)
	if err != nil {
		return e, usagef("invalid cid %q: %v", s, err)
	}
	e.CID = id
	return e, nil
}

func (a *app) mirrorExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <out.tar> <[label=]cid>...",
		Short: "Write mirrored documents to a bundle",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				return usagef("export needs an output file and at least one cid")
			}
			return nil
		},
		RunE: func(_ *cobra.Command, args []string) error {
			entries := make([]bundle.Entry, 0, len(args)-1)
			for _, s := range args[1:] {
				e, err := parseEntry(s)
				if err != nil {
					return err
				}
				entries = append(entries, e)
			}
			cas, err := a.openMirror()
			if err != nil {
				return err
			}
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			idx, err := bundle.Export(f, cas, entries)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(args[0])
				return err
			}
			return a.printJSON(idx)
		},
	}
}

func (a *app) mirrorImportCmd() *cobra.Command {
	var ignoreUnknown bool
	cmd := &cobra.Command{
		Use:   "import <bundle.tar>",
		Short: "Load a bundle into the mirror",
		Args:  exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cas, err := a.openMirror()
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			idx, err := bundle.Import(f, cas, bundle.ImportOptions{IgnoreUnknown: ignoreUnknown})
			if err != nil {
				return err
			}
			if idx == nil {
				idx = &bundle.Index{Version: bundle.FormatVersion}
			}
			return a.printJSON(idx)
		},
	}
	cmd.Flags().BoolVar(&ignoreUnknown, "ignore-unknown", false, "skip entries that are not blocks")
	return cmd
}
