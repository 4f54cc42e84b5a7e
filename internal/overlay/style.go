package overlay

// DefaultPalette is the color cycle used for assignments
var DefaultPalette = []string{"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd"}

// Style holds every color and stroke constant used for the overlay. It can be
// loaded from the YAML style file.
type Style struct {
	Palette         []string `yaml:"palette" json:"palette"`
	OriginColor     string   `yaml:"origin_color" json:"origin_color"`
	NeutralColor    string   `yaml:"neutral_color" json:"neutral_color"`
	HighlightColor  string   `yaml:"highlight_color" json:"highlight_color"`
	LineWeight      float64  `yaml:"line_weight" json:"line_weight"`
	LineOpacity     float64  `yaml:"line_opacity" json:"line_opacity"`
	HighlightWeight float64  `yaml:"highlight_weight" json:"highlight_weight"`
	DimOpacity      float64  `yaml:"dim_opacity" json:"dim_opacity"`
}

// DefaultStyle returns the built-in style
func DefaultStyle() Style {
	return Style{
		Palette:         append([]string(nil), DefaultPalette...),
		OriginColor:     "#000000",
		NeutralColor:    "#9e9e9e",
		HighlightColor:  "#ffd400",
		LineWeight:      4,
		LineOpacity:     0.7,
		HighlightWeight: 7,
		DimOpacity:      0.25,
	}
}

// WithDefaults fills unset fields from DefaultStyle
func (s Style) WithDefaults() Style {
	d := DefaultStyle()
	if len(s.Palette) == 0 {
		s.Palette = d.Palette
	}
	if s.OriginColor == "" {
		s.OriginColor = d.OriginColor
	}
	if s.NeutralColor == "" {
		s.NeutralColor = d.NeutralColor
	}
	if s.HighlightColor == "" {
		s.HighlightColor = d.HighlightColor
	}
	if s.LineWeight <= 0 {
		s.LineWeight = d.LineWeight
	}
	if s.LineOpacity <= 0 || s.LineOpacity > 1 {
		s.LineOpacity = d.LineOpacity
	}
	if s.HighlightWeight <= 0 {
		s.HighlightWeight = d.HighlightWeight
	}
	if s.DimOpacity <= 0 || s.DimOpacity > 1 {
		s.DimOpacity = d.DimOpacity
	}
	return s
}

// PaletteColor returns the color of assignment i. The palette cycles, so
// colors repeat once there are more assignments than colors.
func PaletteColor(palette []string, i int) string {
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	if i < 0 {
		i = -i
	}
	return palette[i%len(palette)]
}
