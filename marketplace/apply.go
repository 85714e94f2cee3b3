package marketplace

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"xdao.co/gridstore/catalog"
	"xdao.co/gridstore/chain"
	"xdao.co/gridstore/schema"
)

// ApplyPlan is everything needed to write a template to a profile: the
// value, the calldata for an external signer and the value it replaces.
type ApplyPlan struct {
	Template catalog.Template
	Network  chain.Network
	Profile  common.Address
	Key      common.Hash
	Value    []byte
	Calldata []byte

	// Existing is the profile's current grid value, nil when unset or
	// unreadable.
	Existing []byte
}

// Overwrites reports whether applying replaces a grid the profile already has.
func (p *ApplyPlan) Overwrites() bool { return len(p.Existing) > 0 }

// Unchanged reports whether the profile already holds exactly this value.
func (p *ApplyPlan) Unchanged() bool { return bytes.Equal(p.Existing, p.Value) }

// PrepareApply resolves the template value and builds the setData call.
func (s *Service) PrepareApply(ctx context.Context, t catalog.Template, profile common.Address, n chain.Network) (*ApplyPlan, error) {
	value, err := s.Value(ctx, t, n)
	if err != nil {
		return nil, err
	}
	calldata, err := schema.SetDataCalldata(schema.GridLayoutKey, value)
	if err != nil {
		return nil, err
	}
	return &ApplyPlan{
		Template: t,
		Network:  n,
		Profile:  profile,
		Key:      schema.GridLayoutKey,
		Value:    value,
		Calldata: calldata,
		Existing: s.schema.LookupRaw(ctx, profile, schema.GridLayoutKey, n),
	}, nil
}

func pendingKey(n chain.Network, profile common.Address, value []byte) string {
	return n.Name + "/" + strings.ToLower(profile.Hex()) + "/" + valueKey(value)
}

// receiptRetry spaces receipt polls after a transient RPC failure.
const receiptRetry = 2 * time.Second

// Apply submits plan through ledger. While an earlier write of the same
// value to the same profile is unsettled it returns ErrWritePending.
// Failures are returned as is and never retried.
//
// The service follows every submitted write itself, so the slot is freed
// once the transaction is mined or reverted, or after ConfirmTimeout, even
// if the caller never waits on the returned PendingWrite.
func (s *Service) Apply(ctx context.Context, plan *ApplyPlan, ledger schema.Ledger) (*schema.PendingWrite, error) {
	key := pendingKey(plan.Network, plan.Profile, plan.Value)

	s.mu.Lock()
	if pw, ok := s.pending[key]; ok && (pw == nil || !pw.Settled()) {
		s.mu.Unlock()
		return nil, ErrWritePending
	}
	s.pending[key] = nil
	s.mu.Unlock()

	pw, err := s.schema.WritePointer(ctx, plan.Profile, plan.Key, plan.Value, plan.Network, ledger)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		delete(s.pending, key)
		return nil, err
	}
	s.pending[key] = pw
	s.log.Info("template applied",
		zap.String("template", plan.Template.ID),
		zap.String("profile", plan.Profile.Hex()),
		zap.String("tx", pw.Tx.Hex()),
		zap.Bool("overwrites", plan.Overwrites()))

	s.watchers.Add(1)
	go s.watch(key, pw)
	return pw, nil
}

// watch waits for pw to settle and then releases its slot.
func (s *Service) watch(key string, pw *schema.PendingWrite) {
	defer s.watchers.Done()
	ctx, cancel := context.WithTimeout(s.watchCtx, s.confirmTimeout)
	defer cancel()

	for !pw.Settled() {
		_, err := pw.Wait(ctx)
		if err == nil || pw.Settled() || ctx.Err() != nil {
			break
		}
		s.log.Debug("receipt poll failed", zap.String("tx", pw.Tx.Hex()), zap.Error(err))
		t := time.NewTimer(receiptRetry)
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.C:
		}
	}

	s.mu.Lock()
	if s.pending[key] == pw {
		delete(s.pending, key)
	}
	s.mu.Unlock()

	switch {
	case pw.Settled():
		_, err := pw.Wait(ctx)
		s.log.Info("write settled", zap.String("tx", pw.Tx.Hex()), zap.Bool("confirmed", err == nil))
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		s.log.Warn("write unconfirmed; treating as dropped",
			zap.String("tx", pw.Tx.Hex()),
			zap.Duration("after", s.confirmTimeout))
	}
}
