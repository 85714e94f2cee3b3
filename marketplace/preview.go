package marketplace

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"xdao.co/gridstore/catalog"
	"xdao.co/gridstore/chain"
	"xdao.co/gridstore/grid"
	"xdao.co/gridstore/pointer"
	"xdao.co/gridstore/schema"
)

// Integrity reports how fetched grid content relates to the pointer hash.
type Integrity string

const (
	IntegrityVerified   Integrity = "verified"
	IntegrityMismatch   Integrity = "mismatch"
	IntegrityUnverified Integrity = "unverified"
)

// LayoutEntry is a decoded pointer with the grid it points at.
type LayoutEntry struct {
	Pointer   *pointer.Pointer
	URL       string
	Integrity Integrity
	Layout    *grid.Layout
}

// CellView is a preview cell with its display URLs resolved.
type CellView struct {
	grid.Cell
	ImageURL  string
	Thumbnail string
}

type Preview struct {
	Template catalog.Template
	Network  chain.Network
	Value    []byte
	*LayoutEntry

	// Section is the first section of the layout; HasSection is false for
	// empty layouts.
	Section    grid.Section
	HasSection bool
	Cells      []CellView

	ProfileImageURL    string
	BackgroundImageURL string
}

// LoadLayout decodes value, fetches the grid and parses it. Results are
// cached by value. A hash mismatch does not fail the load; it is reported in
// Integrity so catalog previews keep working when gateways re-encode
// content.
func (s *Service) LoadLayout(ctx context.Context, value []byte) (*LayoutEntry, error) {
	return s.layouts.Do(ctx, valueKey(value), func(ctx context.Context) (*LayoutEntry, error) {
		p, err := pointer.Decode(value)
		if err != nil {
			return nil, err
		}
		body, err := s.resolver.Fetch(ctx, p.Locator)
		if err != nil {
			return nil, err
		}

		e := &LayoutEntry{Pointer: p, URL: s.resolver.URL(p.Locator), Integrity: IntegrityUnverified}
		if p.Verified() {
			e.Integrity = IntegrityVerified
			if err := p.Verify(body); errors.Is(err, pointer.ErrHashMismatch) {
				e.Integrity = IntegrityMismatch
				s.log.Warn("grid content does not match pointer hash",
					zap.String("locator", p.Locator),
					zap.String("hash", p.HashHex()))
			}
		}

		e.Layout, err = grid.Parse(body)
		if err != nil {
			return nil, fmt.Errorf("marketplace: %s: %w", p.Locator, err)
		}
		return e, nil
	})
}

// Preview resolves the template's value and renders its first section.
func (s *Service) Preview(ctx context.Context, t catalog.Template, n chain.Network) (*Preview, error) {
	value, err := s.Value(ctx, t, n)
	if err != nil {
		return nil, err
	}
	entry, err := s.LoadLayout(ctx, value)
	if err != nil {
		return nil, err
	}

	pv := &Preview{Template: t, Network: n, Value: value, LayoutEntry: entry}
	if sec, ok := entry.Layout.Preview(); ok {
		pv.Section, pv.HasSection = sec, true
		pv.Cells = make([]CellView, len(sec.Cells))
		for i, c := range sec.Cells {
			pv.Cells[i] = s.cellView(c)
		}
	}

	if addr, ok := t.Address(); ok {
		if sum, err := s.summary(ctx, addr, n); err == nil && sum != nil {
			pv.ProfileImageURL = s.imageURL(sum.ProfileImage)
			pv.BackgroundImageURL = s.imageURL(sum.BackgroundImage)
			if len(pv.Template.Tags) == 0 {
				pv.Template.Tags = append([]string(nil), sum.Tags...)
			}
		}
	}
	return pv, nil
}

func (s *Service) cellView(c grid.Cell) CellView {
	v := CellView{Cell: c, ImageURL: s.imageURL(grid.ImageLocator(c))}
	if f, ok := c.Payload.(grid.Frame); ok {
		v.Thumbnail = f.Embed.Thumbnail()
	}
	return v
}

// ProfileGrid reads the live grid of addr. It returns a nil value and entry
// when the profile has no grid set.
func (s *Service) ProfileGrid(ctx context.Context, addr common.Address, n chain.Network) ([]byte, *LayoutEntry, error) {
	raw, err := s.schema.ReadRaw(ctx, addr, schema.GridLayoutKey, n)
	if err != nil || raw == nil {
		return nil, nil, err
	}
	entry, err := s.LoadLayout(ctx, raw)
	if err != nil {
		return raw, nil, err
	}
	return raw, entry, nil
}
