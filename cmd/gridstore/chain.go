package main

import (
	"errors"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"xdao.co/gridstore/chain"
	"xdao.co/gridstore/grid"
	"xdao.co/gridstore/marketplace"
	"xdao.co/gridstore/model"
	"xdao.co/gridstore/pointer"
)

func (a *app) resolveCmd() *cobra.Command {
	var verify, layout bool
	cmd := &cobra.Command{
		Use:   "resolve <value-hex>",
		Short: "Fetch the content a VerifiableURI value points to",
		Long: `Resolve decodes value, fetches its locator through the gateway (or the
mirror) and writes the content to stdout. Verified values are checked against
their digest unless --verify=false. --layout parses the content as a grid.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pointer.DecodeHex(args[0])
			if err != nil {
				return usageError{err}
			}
			res, err := a.resolver()
			if err != nil {
				return err
			}
			ctx := a.context(cmd)
			var body []byte
			if verify {
				body, err = res.FetchPointer(ctx, p)
			} else {
				body, err = res.Fetch(ctx, p.Locator)
			}
			if err != nil {
				return err
			}
			if !layout {
				_, err = a.out.Write(body)
				return err
			}
			l, err := grid.Parse(body)
			if err != nil {
				return err
			}
			return a.printJSON(model.FromLayout(l, res.URL))
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", true, "check content against the value's digest")
	cmd.Flags().BoolVar(&layout, "layout", false, "parse and print the content as a grid layout")
	return cmd
}

func (a *app) profileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile <address>",
		Short: "Show a Universal Profile's LSP3 metadata",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := marketplace.ParseAddress(args[0])
			if err != nil {
				return usageError{err}
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			p, err := svc.Profile(a.context(cmd), addr, a.net)
			if err != nil {
				return err
			}
			return a.printJSON(model.FromProfile(p))
		},
	}
}

func (a *app) gridCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grid <address>",
		Short: "Read and resolve a profile's LSP28 grid",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := marketplace.ParseAddress(args[0])
			if err != nil {
				return usageError{err}
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			value, entry, err := svc.ProfileGrid(a.context(cmd), addr, a.net)
			if err != nil {
				return err
			}
			return a.printJSON(model.FromProfileGrid(addr, a.net, value, entry, svc.Resolver().URL))
		},
	}
}

type applyOutput struct {
	Plan        model.ApplyPlan `json:"plan"`
	Tx          string          `json:"tx,omitempty"`
	ExplorerURL string          `json:"explorerUrl,omitempty"`
	Block       uint64          `json:"block,omitempty"`
	Confirmed   bool            `json:"confirmed,omitempty"`
}

func (a *app) applyCmd() *cobra.Command {
	var profile, signedTx string
	var wait bool
	cmd := &cobra.Command{
		Use:   "apply <template-id>",
		Short: "Write a template's grid to a profile",
		Long: `Apply prints the setData plan for writing the template to --profile: the
value, the calldata to sign and the grid it replaces.

With --signed-tx the transaction (signed over that calldata by the profile's
controller) is broadcast and, unless --wait=false, followed until mined.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := marketplace.ParseAddress(profile)
			if err != nil {
				return usageError{err}
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			t, err := svc.Template(args[0])
			if err != nil {
				return usageError{err}
			}
			ctx := a.context(cmd)
			plan, err := svc.PrepareApply(ctx, t, addr, a.net)
			if err != nil {
				return err
			}
			out := applyOutput{Plan: model.FromPlan(plan)}
			if signedTx == "" {
				if plan.Overwrites() && !plan.Unchanged() {
					a.log.Warn("profile already has a grid; applying replaces it",
						zap.String("profile", addr.Hex()),
						zap.String("existing", model.Hex(plan.Existing)))
				}
				return a.printJSON(out)
			}

			tx, err := chain.DecodeSignedTx(signedTx)
			if err != nil {
				return usageError{err}
			}
			pw, err := svc.Apply(ctx, plan, chain.Presigned{Store: a.store, Tx: tx})
			if err != nil {
				if errors.Is(err, chain.ErrTxMismatch) {
					return usageError{err}
				}
				return err
			}
			out.Tx, out.ExplorerURL = pw.Tx.Hex(), pw.ExplorerURL()
			if wait {
				r, err := pw.Wait(ctx)
				if err != nil {
					return err
				}
				out.Confirmed = r.Status == types.ReceiptStatusSuccessful
				if r.BlockNumber != nil {
					out.Block = r.BlockNumber.Uint64()
				}
			}
			return a.printJSON(out)
		},
	}
	cmd.Flags().StringVar(&profile, "profile", "", "Universal Profile address to write to (required)")
	cmd.Flags().StringVar(&signedTx, "signed-tx", "", "raw signed transaction (hex) to broadcast")
	cmd.Flags().BoolVar(&wait, "wait", true, "wait for the transaction to be mined")
	_ = cmd.MarkFlagRequired("profile")
	return cmd
}
