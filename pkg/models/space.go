package models

import "fmt"

// SpaceKind tags the convention a CoordinateSpace describes
type SpaceKind int

const (
	KindPageUnits SpaceKind = iota + 1
	KindNormalized
	KindPixel
	KindUntrusted
)

func (k SpaceKind) String() string {
	switch k {
	case KindPageUnits:
		return "page"
	case KindNormalized:
		return "normalized"
	case KindPixel:
		return "pixel"
	case KindUntrusted:
		return "untrusted"
	default:
		return fmt.Sprintf("SpaceKind(%d)", int(k))
	}
}

// CoordinateSpace describes how the numbers of a BoundingBox are to be
// interpreted. The set of implementations is closed.
type CoordinateSpace interface {
	Kind() SpaceKind
	fmt.Stringer
	isSpace()
}

// PageUnits are document-native linear measurements (e.g. 1/72-inch
// points) with a top-left origin
type PageUnits struct {
	PageWidth  float64 `json:"page_width"`
	PageHeight float64 `json:"page_height"`
}

func (PageUnits) Kind() SpaceKind { return KindPageUnits }
func (PageUnits) isSpace()        {}

func (p PageUnits) String() string {
	return fmt.Sprintf("page(%gx%g)", p.PageWidth, p.PageHeight)
}

// Normalized coordinates are fractions in [0, 1] of an implicit page
type Normalized struct{}

func (Normalized) Kind() SpaceKind { return KindNormalized }
func (Normalized) isSpace()        {}
func (Normalized) String() string  { return "normalized" }

// PixelSpace is the raster space of a named bitmap, origin top-left
type PixelSpace struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (PixelSpace) Kind() SpaceKind { return KindPixel }
func (PixelSpace) isSpace()        {}

func (p PixelSpace) String() string {
	return fmt.Sprintf("pixel(%gx%g)", p.Width, p.Height)
}

// Untrusted marks boxes from the free-form content listing, whose scale
// law is undocumented upstream. AssumedWidth and AssumedHeight are the
// reference extent the caller chooses to believe; the axes may not share
// a scale factor.
type Untrusted struct {
	AssumedWidth  float64 `json:"assumed_width"`
	AssumedHeight float64 `json:"assumed_height"`
}

func (Untrusted) Kind() SpaceKind { return KindUntrusted }
func (Untrusted) isSpace()        {}

func (u Untrusted) String() string {
	return fmt.Sprintf("untrusted(%gx%g)", u.AssumedWidth, u.AssumedHeight)
}

// Reliability grades how far a source document's boxes can be trusted
type Reliability int

const (
	ReliabilityLow Reliability = iota
	ReliabilityMedium
	ReliabilityHigh
)

func (r Reliability) String() string {
	switch r {
	case ReliabilityHigh:
		return "high"
	case ReliabilityMedium:
		return "medium"
	default:
		return "low"
	}
}

// SourceKind identifies which upstream document a box came from
type SourceKind string

const (
	SourceLayout      SourceKind = "layout"
	SourceNormalized  SourceKind = "normalized"
	SourceContentList SourceKind = "content_list"
)

// Reliability returns the documented trust level of the source
func (s SourceKind) Reliability() Reliability {
	switch s {
	case SourceLayout:
		return ReliabilityHigh
	case SourceNormalized:
		return ReliabilityMedium
	default:
		return ReliabilityLow
	}
}

// ParseSourceKind maps a CLI or config value onto a SourceKind
func ParseSourceKind(s string) (SourceKind, error) {
	switch SourceKind(s) {
	case SourceLayout, SourceNormalized, SourceContentList:
		return SourceKind(s), nil
	}
	return "", fmt.Errorf("unknown source kind %q", s)
}
