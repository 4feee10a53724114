package pipeline

// View is what an adapter sees of the run: progress notifications bound to its own name,
// session data, and result data merging. It wraps the shared context by reference.
type View struct {
	name   string
	shared *sharedContext
}

func newView(name string, shared *sharedContext) *View {
	return &View{name: name, shared: shared}
}

// Name returns the name of the adapter this view was created for.
func (v *View) Name() string {
	return v.name
}

// NotifyProgress forwards `phase` to the run's progress sink under this adapter's name.
func (v *View) NotifyProgress(phase Phase) {
	v.shared.onProgress(v.name, phase)
}

// AddData deep-merges `partial` into the run's result data.
func (v *View) AddData(partial map[string]any) {
	v.shared.mergeData(partial)
}

func (v *View) HasSessionData(key string) bool {
	return v.shared.hasSessionKey(key)
}

// GetSessionData returns the value stored under `key`, the bool is false when nothing was
// stored, which is distinct from a stored nil or zero value.
func (v *View) GetSessionData(key string) (any, bool) {
	return v.shared.getSessionValue(key)
}

func (v *View) SetSessionData(key string, value any) {
	v.shared.setSessionValue(key, value)
}

// DeleteSessionData removes `key`, later reads see it as never stored.
func (v *View) DeleteSessionData(key string) {
	v.shared.deleteSessionValue(key)
}
