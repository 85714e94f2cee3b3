package model

import (
	"encoding/hex"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"

	"xdao.co/gridstore/catalog"
	"xdao.co/gridstore/chain"
	"xdao.co/gridstore/grid"
	"xdao.co/gridstore/marketplace"
	"xdao.co/gridstore/pointer"
)

// URLFunc turns a locator into a fetchable URL.
type URLFunc func(locator string) string

// Hex renders b as 0x-prefixed hex; empty input renders as "".
func Hex(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return "0x" + hex.EncodeToString(b)
}

func strs(in []string) []string {
	if in == nil {
		return []string{}
	}
	return append([]string(nil), in...)
}

func FromPointer(p *pointer.Pointer, url URLFunc) Pointer {
	out := Pointer{
		Method:   p.Method.String(),
		Verified: p.Verified(),
		Hash:     p.HashHex(),
		Locator:  p.Locator,
		Scheme:   string(p.Scheme()),
	}
	if url != nil {
		out.URL = url(p.Locator)
	}
	return out
}

func fromCell(c grid.Cell, imageURL string) Cell {
	props := c.Properties
	if len(props) == 0 {
		props = json.RawMessage(`{}`)
	}
	out := Cell{
		Width:      c.Width,
		Height:     c.Height,
		Kind:       string(c.Kind),
		Type:       c.RawKind,
		Label:      c.Kind.Label(),
		Properties: props,
		ImageURL:   imageURL,
	}
	if f, ok := c.Payload.(grid.Frame); ok && f.Embed.Provider != grid.ProviderNone {
		out.Embed = &Embed{
			Provider:  string(f.Embed.Provider),
			VideoID:   f.Embed.VideoID,
			Thumbnail: f.Embed.Thumbnail(),
		}
	}
	return out
}

func FromSection(s grid.Section, url URLFunc) Section {
	out := Section{
		Title:      s.Title,
		Columns:    s.Columns,
		Visibility: string(s.Visibility),
		Cells:      make([]Cell, len(s.Cells)),
	}
	for i, c := range s.Cells {
		var img string
		if loc := grid.ImageLocator(c); loc != "" && url != nil {
			img = url(loc)
		}
		out.Cells[i] = fromCell(c, img)
	}
	return out
}

func FromLayout(l *grid.Layout, url URLFunc) Layout {
	secs := l.Sections()
	out := Layout{Sections: make([]Section, len(secs))}
	for i, s := range secs {
		out.Sections[i] = FromSection(s, url)
	}
	return out
}

func FromTemplate(t catalog.Template) Template {
	return Template{
		ID:             t.ID,
		Name:           t.Name,
		Description:    t.Description,
		Author:         t.Author,
		Category:       string(t.Category),
		Preview:        t.Preview,
		Grid:           t.Grid,
		Featured:       t.Featured,
		ProfileLink:    t.ProfileLink,
		ProfileAddress: t.ProfileAddress,
		Tags:           strs(t.Tags),
		Source:         t.Source.Kind().String(),
		RawValue:       t.Source.RawValue,
	}
}

func FromTemplates(ts []catalog.Template) []Template {
	out := make([]Template, len(ts))
	for i, t := range ts {
		out[i] = FromTemplate(t)
	}
	return out
}

func FromCategories(cs []catalog.CategoryInfo) []Category {
	out := make([]Category, len(cs))
	for i, c := range cs {
		out[i] = Category{ID: string(c.ID), Name: c.Name, Icon: c.Icon}
	}
	return out
}

func FromPreview(pv *marketplace.Preview, url URLFunc) Preview {
	out := Preview{
		Template:           FromTemplate(pv.Template),
		Network:            pv.Network.Name,
		Value:              Hex(pv.Value),
		Pointer:            FromPointer(pv.Pointer, url),
		Integrity:          string(pv.Integrity),
		Sections:           pv.Layout.Len(),
		ProfileImageURL:    pv.ProfileImageURL,
		BackgroundImageURL: pv.BackgroundImageURL,
	}
	if pv.HasSection {
		sec := Section{
			Title:      pv.Section.Title,
			Columns:    pv.Section.Columns,
			Visibility: string(pv.Section.Visibility),
			Cells:      make([]Cell, len(pv.Cells)),
		}
		for i, c := range pv.Cells {
			sec.Cells[i] = fromCell(c.Cell, c.ImageURL)
		}
		out.Section = &sec
	}
	return out
}

func FromProfile(p *marketplace.Profile) Profile {
	links := make([]Link, len(p.Summary.Links))
	for i, l := range p.Summary.Links {
		links[i] = Link{Title: l.Title, URL: l.URL}
	}
	return Profile{
		Address:            p.Address.Hex(),
		Network:            p.Network.Name,
		Name:               p.Summary.Name,
		Description:        p.Summary.Description,
		ProfileImage:       p.Summary.ProfileImage,
		ProfileImageURL:    p.ProfileImageURL,
		BackgroundImage:    p.Summary.BackgroundImage,
		BackgroundImageURL: p.BackgroundImageURL,
		Tags:               strs(p.Summary.Tags),
		Links:              links,
		ExplorerURL:        p.Network.AddressURL(p.Address),
	}
}

// FromProfileGrid projects a live grid read. entry is nil when the profile
// has no grid value.
func FromProfileGrid(addr common.Address, n chain.Network, value []byte, entry *marketplace.LayoutEntry, url URLFunc) ProfileGrid {
	out := ProfileGrid{Address: addr.Hex(), Network: n.Name, Value: Hex(value)}
	if entry == nil {
		return out
	}
	p := FromPointer(entry.Pointer, url)
	l := FromLayout(entry.Layout, url)
	out.Pointer, out.Layout, out.Integrity = &p, &l, string(entry.Integrity)
	return out
}

func FromPlan(p *marketplace.ApplyPlan) ApplyPlan {
	return ApplyPlan{
		Template:   p.Template.ID,
		Network:    p.Network.Name,
		ChainID:    p.Network.ChainID,
		Profile:    p.Profile.Hex(),
		Key:        p.Key.Hex(),
		Value:      Hex(p.Value),
		Calldata:   Hex(p.Calldata),
		Existing:   Hex(p.Existing),
		Overwrites: p.Overwrites(),
		Unchanged:  p.Unchanged(),
	}
}
