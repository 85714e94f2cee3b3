package grid

import "strings"

// Kind discriminates the payload of a Cell.
type Kind string

const (
	KindText      Kind = "text"
	KindImages    Kind = "images"
	KindFrame     Kind = "iframe"
	KindWidget    Kind = "elfsight"
	KindX         Kind = "x"
	KindInstagram Kind = "instagram"
	KindQRCode    Kind = "qr-code"
	KindUnknown   Kind = "unknown"
)

var wireKinds = map[string]Kind{
	"TEXT":      KindText,
	"IMAGES":    KindImages,
	"IFRAME":    KindFrame,
	"ELFSIGHT":  KindWidget,
	"X":         KindX,
	"INSTAGRAM": KindInstagram,
	"QR_CODE":   KindQRCode,
}

// KindOf maps a JSON "type" value to a Kind. Matching ignores case and
// surrounding space; anything unrecognised is KindUnknown.
func KindOf(wire string) Kind {
	if k, ok := wireKinds[strings.ToUpper(strings.TrimSpace(wire))]; ok {
		return k
	}
	return KindUnknown
}

// WireName is the JSON "type" value for k, or "" for KindUnknown.
func (k Kind) WireName() string {
	for w, kk := range wireKinds {
		if kk == k {
			return w
		}
	}
	return ""
}

// Label is a short display name.
func (k Kind) Label() string {
	switch k {
	case KindText:
		return "Text"
	case KindImages:
		return "Images"
	case KindFrame:
		return "Embed"
	case KindX:
		return "X/Twitter"
	case KindInstagram:
		return "Instagram"
	case KindWidget:
		return "Widget"
	case KindQRCode:
		return "QR Code"
	default:
		return "Item"
	}
}
