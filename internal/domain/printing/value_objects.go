package printing

import "github.com/quotation/backend/internal/domain/shared"

// Margins represents the page margins in millimeters
type Margins struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// NewMargins creates a new Margins value object
func NewMargins(top, right, bottom, left int) (Margins, error) {
	if top < 0 || right < 0 || bottom < 0 || left < 0 {
		return Margins{}, shared.NewValidationError("margins", "cannot be negative")
	}
	if top > 100 || right > 100 || bottom > 100 || left > 100 {
		return Margins{}, shared.NewValidationError("margins", "cannot exceed 100mm")
	}
	return Margins{Top: top, Right: right, Bottom: bottom, Left: left}, nil
}

// DefaultMargins returns the default page margins
func DefaultMargins() Margins {
	return Margins{Top: 15, Right: 12, Bottom: 15, Left: 12}
}

// Settings describes the physical page an export is printed on
type Settings struct {
	PaperSize   PaperSize   `json:"paper_size"`
	Orientation Orientation `json:"orientation"`
	Margins     Margins     `json:"margins"`
}

// DefaultSettings returns A4 portrait with default margins
func DefaultSettings() Settings {
	return Settings{
		PaperSize:   PaperSizeA4,
		Orientation: OrientationPortrait,
		Margins:     DefaultMargins(),
	}
}

// Validate checks the settings
func (s Settings) Validate() error {
	if !s.PaperSize.IsValid() {
		return shared.NewValidationError("paper_size", "unsupported paper size "+string(s.PaperSize))
	}
	if !s.Orientation.IsValid() {
		return shared.NewValidationError("orientation", "unsupported orientation "+string(s.Orientation))
	}
	_, err := NewMargins(s.Margins.Top, s.Margins.Right, s.Margins.Bottom, s.Margins.Left)
	return err
}

// PageDimensions returns the oriented page size in millimeters
func (s Settings) PageDimensions() (width, height int) {
	w, h := s.PaperSize.Dimensions()
	if s.Orientation == OrientationLandscape {
		return h, w
	}
	return w, h
}
