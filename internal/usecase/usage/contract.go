package usage

import domusage "github.com/kailas-cloud/lectern/internal/domain/usage"

// WindowReader exposes one provider's current budget windows.
type WindowReader interface {
	Provider() string
	Window(p domusage.Period) domusage.Window
}
