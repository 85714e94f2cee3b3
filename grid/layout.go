// Package grid models LSP28 grid layouts: ordered sections of sized,
// typed cells.
//
// Parse is permissive. Unknown cell types, odd sizes and missing fields are
// normalized rather than rejected, so a layout written by a newer client
// still renders.
package grid

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// RootKey is the top-level JSON member holding the section list.
const RootKey = "LSP28TheGrid"

const (
	MinColumns     = 2
	MaxColumns     = 4
	DefaultColumns = 3
)

var ErrInvalidLayout = errors.New("grid: invalid layout")

type Visibility string

const (
	Public  Visibility = "public"
	Private Visibility = "private"
)

type Cell struct {
	Width   int
	Height  int
	Kind    Kind
	RawKind string
	Payload Payload

	// Properties is the property bag exactly as received.
	Properties json.RawMessage
}

func (c Cell) clone() Cell {
	c.Properties = append(json.RawMessage(nil), c.Properties...)
	if c.Payload != nil {
		c.Payload = c.Payload.clone()
	}
	return c
}

type Section struct {
	Title      string
	Columns    int
	Visibility Visibility
	Cells      []Cell
}

func (s Section) clone() Section {
	cells := make([]Cell, len(s.Cells))
	for i, c := range s.Cells {
		cells[i] = c.clone()
	}
	s.Cells = cells
	return s
}

// Layout is an immutable parsed grid. The zero value is an empty layout.
type Layout struct {
	sections []Section
}

// Sections returns a copy of all sections in order.
func (l *Layout) Sections() []Section {
	if l == nil {
		return nil
	}
	out := make([]Section, len(l.sections))
	for i, s := range l.sections {
		out[i] = s.clone()
	}
	return out
}

// Preview returns a copy of the first section.
func (l *Layout) Preview() (Section, bool) {
	if l == nil || len(l.sections) == 0 {
		return Section{}, false
	}
	return l.sections[0].clone(), true
}

func (l *Layout) Len() int {
	if l == nil {
		return 0
	}
	return len(l.sections)
}

type wireCell struct {
	Width      flexInt         `json:"width"`
	Height     flexInt         `json:"height"`
	Type       flexString      `json:"type"`
	Properties json.RawMessage `json:"properties,omitempty"`
}

type wireSection struct {
	Title       flexString `json:"title,omitempty"`
	GridColumns flexInt    `json:"gridColumns"`
	Visibility  flexString `json:"visibility,omitempty"`
	Grid        cellList   `json:"grid"`
}

// Parse decodes a grid document. The input must be a JSON object; a missing
// or null LSP28TheGrid member yields an empty layout.
func Parse(data []byte) (*Layout, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}
	if root == nil {
		return nil, fmt.Errorf("%w: document is null", ErrInvalidLayout)
	}
	raw, ok := root[RootKey]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return &Layout{}, nil
	}

	var wire []wireSection
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidLayout, RootKey, err)
	}

	l := &Layout{sections: make([]Section, 0, len(wire))}
	for _, ws := range wire {
		l.sections = append(l.sections, normalizeSection(ws))
	}
	return l, nil
}

func normalizeSection(ws wireSection) Section {
	s := Section{
		Title:      string(ws.Title),
		Columns:    clampColumns(int(ws.GridColumns)),
		Visibility: Public,
		Cells:      make([]Cell, 0, len(ws.Grid)),
	}
	if strings.EqualFold(strings.TrimSpace(string(ws.Visibility)), string(Private)) {
		s.Visibility = Private
	}
	for _, wc := range ws.Grid {
		s.Cells = append(s.Cells, normalizeCell(wc))
	}
	return s
}

func normalizeCell(wc wireCell) Cell {
	raw := string(wc.Type)
	k := KindOf(raw)
	props := append(json.RawMessage(nil), wc.Properties...)
	return Cell{
		Width:      atLeastOne(int(wc.Width)),
		Height:     atLeastOne(int(wc.Height)),
		Kind:       k,
		RawKind:    raw,
		Payload:    decodePayload(k, raw, props),
		Properties: props,
	}
}

func clampColumns(n int) int {
	switch {
	case n == 0:
		return DefaultColumns
	case n < MinColumns:
		return MinColumns
	case n > MaxColumns:
		return MaxColumns
	default:
		return n
	}
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// MarshalJSON writes the normalized layout in its LSP28TheGrid wire form.
// Cell properties are emitted as received.
func (l *Layout) MarshalJSON() ([]byte, error) {
	wire := make([]wireSection, 0, l.Len())
	for _, s := range l.Sections() {
		ws := wireSection{
			Title:       flexString(s.Title),
			GridColumns: flexInt(s.Columns),
			Visibility:  flexString(s.Visibility),
			Grid:        make(cellList, 0, len(s.Cells)),
		}
		for _, c := range s.Cells {
			props := c.Properties
			if len(props) == 0 {
				props = json.RawMessage("{}")
			}
			ws.Grid = append(ws.Grid, wireCell{
				Width:      flexInt(c.Width),
				Height:     flexInt(c.Height),
				Type:       flexString(c.RawKind),
				Properties: props,
			})
		}
		wire = append(wire, ws)
	}
	return json.Marshal(map[string][]wireSection{RootKey: wire})
}

// flexInt accepts JSON numbers (truncated) and numeric strings. Anything
// else decodes to 0 and is normalized later.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		*f = flexInt(v)
		return nil
	}
	*f = 0
	return nil
}

// flexString accepts JSON strings. Numbers, objects and other values decode
// to "" so the field falls back to its default.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*f = ""
		return nil
	}
	*f = flexString(s)
	return nil
}

// cellList decodes each grid entry on its own. An entry that is not an
// object becomes an empty cell, which normalizes to a 1x1 unknown cell, and
// a grid that is not an array has no cells.
type cellList []wireCell

func (l *cellList) UnmarshalJSON(b []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(b, &raws); err != nil {
		*l = nil
		return nil
	}
	out := make(cellList, 0, len(raws))
	for _, raw := range raws {
		var wc wireCell
		if err := json.Unmarshal(raw, &wc); err != nil {
			wc = wireCell{}
		}
		out = append(out, wc)
	}
	*l = out
	return nil
}

// ImageLocator returns the locator a preview should show for c: the first
// image of an image set or a text cell's background image.
func ImageLocator(c Cell) string {
	switch p := c.Payload.(type) {
	case Images:
		if len(p.Images) > 0 {
			return p.Images[0]
		}
	case Text:
		return p.BackgroundImage
	}
	return ""
}
