package pipeline

// Window pairs an analysis lead with the accumulation lead six hours later.
// The first lead contributes the full model state, the second contributes
// the accumulated and static surface fields valid at its time.
type Window struct {
	Analysis int
	Accum    int
}

// Leads returns the window's leads in order.
func (w Window) Leads() []int { return []int{w.Analysis, w.Accum} }

// LeadWindows partitions the twelve-hour lead range into six two-step
// windows: (0,6), (1,7), ... (5,11). Each window becomes one independent
// extraction job and one output artifact.
func LeadWindows() []Window {
	windows := make([]Window, 6)
	for i := range windows {
		windows[i] = Window{Analysis: i, Accum: i + 6}
	}
	return windows
}
