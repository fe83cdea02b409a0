package series

import "fmt"

// WindowConfig defines one pre/crisis window shape around an anchor date.
// The window covers [anchor-PreDays, anchor+PostDays) with the anchor itself
// counted on the crisis side.
type WindowConfig struct {
	Label    string
	PreDays  int
	PostDays int
}

// Validate checks the day counts.
func (w WindowConfig) Validate() error {
	if w.PreDays <= 0 {
		return fmt.Errorf("window %s: pre_days must be positive, got %d", w.Label, w.PreDays)
	}
	if w.PostDays <= 0 {
		return fmt.Errorf("window %s: post_days must be positive, got %d", w.Label, w.PostDays)
	}
	return nil
}

// EventSpec names one historical event and the window shapes evaluated
// around its anchor date. Specs are analyst-defined and immutable at runtime.
type EventSpec struct {
	Name    string
	Anchor  Day
	Windows []WindowConfig
}

// Validate checks the anchor and every window shape.
func (e EventSpec) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("event spec requires a name")
	}
	if e.Anchor.IsZero() {
		return fmt.Errorf("event %s: anchor date required", e.Name)
	}
	if len(e.Windows) == 0 {
		return fmt.Errorf("event %s: at least one window config required", e.Name)
	}
	for _, w := range e.Windows {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("event %s: %w", e.Name, err)
		}
	}
	return nil
}
