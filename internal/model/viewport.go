package model

import "fmt"

// Viewport is a named browser window size. States observed under different
// viewports are distinct: a layout that collapses into a hamburger menu at
// mobile width exposes different actions than the desktop layout.
type Viewport struct {
	// Name identifies the viewport in fingerprints, issues, and reports.
	Name string `json:"name" yaml:"name"`

	// Width and Height are the window dimensions in CSS pixels.
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// DefaultViewport is used when the configuration declares none.
var DefaultViewport = Viewport{Name: "desktop", Width: 1280, Height: 800}

// String returns the viewport as "name (WxH)".
func (v Viewport) String() string {
	return fmt.Sprintf("%s (%dx%d)", v.Name, v.Width, v.Height)
}

// IsZero reports whether the viewport is unset.
func (v Viewport) IsZero() bool {
	return v.Name == "" && v.Width == 0 && v.Height == 0
}
