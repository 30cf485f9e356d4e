package photospec

import "math"

const mmPerInch = 25.4

// Specification is an immutable ID-photo output format: physical print
// size plus target print density, from which pixel dimensions derive.
type Specification struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	WidthMM  float64 `json:"width_mm"`
	HeightMM float64 `json:"height_mm"`
	DPI      int     `json:"dpi"`
}

// PixelSize returns the output dimensions in pixels (mm * dpi / 25.4)
func (s Specification) PixelSize() (width, height int) {
	width = int(math.Round(s.WidthMM * float64(s.DPI) / mmPerInch))
	height = int(math.Round(s.HeightMM * float64(s.DPI) / mmPerInch))
	return width, height
}

// AspectRatio returns width divided by height
func (s Specification) AspectRatio() float64 {
	return s.WidthMM / s.HeightMM
}

// Catalog returns the fixed set of supported photo specifications
func Catalog() []Specification {
	return []Specification{
		{Code: "one_inch", Name: "One Inch", WidthMM: 25, HeightMM: 35, DPI: 300},
		{Code: "small_one_inch", Name: "Small One Inch", WidthMM: 22, HeightMM: 32, DPI: 300},
		{Code: "two_inch", Name: "Two Inch", WidthMM: 35, HeightMM: 49, DPI: 300},
		{Code: "small_two_inch", Name: "Small Two Inch", WidthMM: 35, HeightMM: 45, DPI: 300},
		{Code: "passport", Name: "Passport", WidthMM: 33, HeightMM: 48, DPI: 300},
		{Code: "id_card", Name: "ID Card", WidthMM: 26, HeightMM: 32, DPI: 300},
		{Code: "driver_license", Name: "Driver's License", WidthMM: 22, HeightMM: 32, DPI: 300},
		{Code: "us_visa", Name: "US Visa", WidthMM: 51, HeightMM: 51, DPI: 300},
		{Code: "japan_visa", Name: "Japan Visa", WidthMM: 45, HeightMM: 45, DPI: 300},
		{Code: "graduation", Name: "Graduation", WidthMM: 33, HeightMM: 48, DPI: 300},
	}
}

// ByCode looks up a specification by its code
func ByCode(code string) (Specification, bool) {
	for _, s := range Catalog() {
		if s.Code == code {
			return s, true
		}
	}
	return Specification{}, false
}
