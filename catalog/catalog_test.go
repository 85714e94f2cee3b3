package catalog

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"xdao.co/gridstore/pointer"
)

func TestDefault_EveryValueDecodes(t *testing.T) {
	c := Default()
	all := c.All()
	if len(all) < 10 {
		t.Fatalf("embedded catalog too small: %d", len(all))
	}
	for _, tpl := range all {
		v, err := tpl.Source.Value()
		if err != nil {
			t.Fatalf("%s: Value: %v", tpl.ID, err)
		}
		p, err := pointer.Decode(v)
		if err != nil {
			t.Fatalf("%s: Decode: %v", tpl.ID, err)
		}
		if !p.Verified() || p.Locator == "" {
			t.Fatalf("%s: want verified pointer with locator, got %+v", tpl.ID, p)
		}
	}
}

func TestDefault_KnownFixture(t *testing.T) {
	tpl, ok := Default().ByID("artist-showcase")
	if !ok {
		t.Fatalf("artist-showcase missing")
	}
	p, err := pointer.DecodeHex(tpl.Source.RawValue)
	if err != nil {
		t.Fatalf("DecodeHex: %v", err)
	}
	if p.Locator != "ipfs://QmYWEsCFX26XZ1RMrHMT8MpS9fZou7kfjEuDVasGxMcNw6" {
		t.Fatalf("locator=%q", p.Locator)
	}
	if p.HashHex() != "0xed1d0f7d3781c4b89ab7cd9fc8d70ba739209b52591049791e738c291c0d927a" {
		t.Fatalf("hash=%s", p.HashHex())
	}
	again, err := pointer.EncodeHex(p.Locator, p.Hash)
	if err != nil {
		t.Fatalf("EncodeHex: %v", err)
	}
	if again != tpl.Source.RawValue {
		t.Fatalf("re-encoding changed the value:\n got %s\nwant %s", again, tpl.Source.RawValue)
	}
}

func TestFilter(t *testing.T) {
	c := Default()
	ids := func(ts []Template) []string {
		out := make([]string, len(ts))
		for i, t := range ts {
			out[i] = t.ID
		}
		return out
	}

	if got := len(c.Filter(Query{})); got != len(c.All()) {
		t.Fatalf("empty query matched %d of %d", got, len(c.All()))
	}
	if got := len(c.Filter(Query{Category: CategoryAll})); got != len(c.All()) {
		t.Fatalf("category all matched %d", got)
	}
	for _, tpl := range c.Filter(Query{Category: CategoryCommunity}) {
		if tpl.Category != CategoryCommunity {
			t.Fatalf("%s has category %s", tpl.ID, tpl.Category)
		}
	}
	if diff := cmp.Diff([]string{"staking-provider"}, ids(c.Filter(Query{Search: "VALIDATOR"}))); diff != "" {
		t.Fatalf("search by description (-want +got):\n%s", diff)
	}
	byAuthor := c.Filter(Query{Search: "speedracer"})
	if len(byAuthor) != 1 || byAuthor[0].ID != "speedracer" {
		t.Fatalf("search by author: %v", ids(byAuthor))
	}
	if got := c.Filter(Query{Category: CategoryGaming}); len(got) != 0 {
		t.Fatalf("gaming should be empty, got %v", ids(got))
	}

	tagged := []Template{
		{ID: "a", Category: CategoryCommunity, Tags: []string{"Art", "music"}},
		{ID: "b", Category: CategoryCommunity, Tags: []string{"dev"}},
	}
	if diff := cmp.Diff([]string{"a"}, ids(Filter(tagged, Query{Tag: "art"}))); diff != "" {
		t.Fatalf("tag filter (-want +got):\n%s", diff)
	}
}

func TestFeaturedAndCategories(t *testing.T) {
	c := Default()
	top := c.Featured(3)
	if len(top) != 3 {
		t.Fatalf("Featured(3) returned %d", len(top))
	}
	for _, tpl := range c.Featured(0) {
		if !tpl.Featured {
			t.Fatalf("%s is not featured", tpl.ID)
		}
	}
	cats := c.Categories()
	if cats[0].ID != CategoryAll {
		t.Fatalf("first category = %s", cats[0].ID)
	}
	if cats[len(cats)-1].ID != CategoryCommunity {
		t.Fatalf("last category = %s", cats[len(cats)-1].ID)
	}
}

func TestCommunityAndAddress(t *testing.T) {
	c := Default()
	var withAddr int
	for _, tpl := range c.Community() {
		if !tpl.Community() {
			t.Fatalf("%s is not community", tpl.ID)
		}
		if _, ok := tpl.Address(); ok {
			withAddr++
		}
	}
	if withAddr == 0 {
		t.Fatalf("expected community templates tied to a profile")
	}
	tpl, _ := c.ByID("t-mass")
	addr, ok := tpl.Address()
	if !ok || !strings.EqualFold(addr.Hex(), "0xcEcD1798420A533c9627770e052f49aa127c3B3B") {
		t.Fatalf("Address()=%s,%v", addr.Hex(), ok)
	}
}

func TestByID_ReturnsCopies(t *testing.T) {
	c, err := Parse([]byte(`
categories: [{id: social, name: Social}]
templates:
  - id: x
    category: social
    tags: [one]
    source: {locator: "ipfs://QmX"}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	a, _ := c.ByID("x")
	a.Tags[0] = "mutated"
	b, _ := c.ByID("x")
	if b.Tags[0] != "one" {
		t.Fatalf("catalog entry was mutated through a returned copy")
	}
	v, err := b.Source.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if got, _ := pointer.Decode(v); got.Locator != "ipfs://QmX" || got.Verified() {
		t.Fatalf("unexpected pointer %+v", got)
	}
}

func TestParse_Rejects(t *testing.T) {
	head := "categories: [{id: social, name: Social}]\ntemplates:\n"
	cases := map[string]string{
		"no source":       "  - {id: a, category: social}\n",
		"two sources":     "  - {id: a, category: social, source: {raw_value: '0x00000000', locator: 'ipfs://x'}}\n",
		"bad raw":         "  - {id: a, category: social, source: {raw_value: '0x01'}}\n",
		"bad hash":        "  - {id: a, category: social, source: {locator: 'ipfs://x', hash: '0x1234'}}\n",
		"hash only":       "  - {id: a, category: social, source: {raw_value: '0x00000000', hash: '0x1234'}}\n",
		"bad profile":     "  - {id: a, category: social, source: {profile: 'nope'}}\n",
		"unknown cat":     "  - {id: a, category: gaming, source: {raw_value: '0x00000000'}}\n",
		"missing id":      "  - {category: social, source: {raw_value: '0x00000000'}}\n",
		"duplicate id":    "  - {id: a, category: social, source: {raw_value: '0x00000000'}}\n  - {id: a, category: social, source: {raw_value: '0x00000000'}}\n",
		"bad profile_ref": "  - {id: a, category: social, profile_address: 'zz', source: {raw_value: '0x00000000'}}\n",
	}
	for name, body := range cases {
		if _, err := Parse([]byte(head + body)); !errors.Is(err, ErrInvalidCatalog) && !errors.Is(err, pointer.ErrMalformedPointerValue) && !errors.Is(err, pointer.ErrInvalidHashLength) {
			t.Fatalf("%s: got %v", name, err)
		}
	}
	if _, err := Parse([]byte("categories: [{id: all}]")); !errors.Is(err, ErrInvalidCatalog) {
		t.Fatalf("reserved category accepted: %v", err)
	}
}

func TestProfileSource(t *testing.T) {
	s := Source{Profile: "0x26e7Da1968cfC61FB8aB2Aad039b5A083b9De21e"}
	if s.Kind() != SourceProfile {
		t.Fatalf("kind=%s", s.Kind())
	}
	if _, err := s.Value(); !errors.Is(err, ErrLiveSource) {
		t.Fatalf("got %v want ErrLiveSource", err)
	}
}

func TestUniqueTags(t *testing.T) {
	got := UniqueTags([]string{"lukso", "Art", " "}, []string{"art", "lukso", "dev"}, nil)
	want := []string{"Art", "art", "dev", "lukso"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("UniqueTags (-want +got):\n%s", diff)
	}
}
