package pipeline

import (
	"reflect"

	"dario.cat/mergo"
)

// sharedContext is the mutable state of one run. It is not safe for concurrent use, a run
// is a single logical thread.
type sharedContext struct {
	data       map[string]any
	session    map[string]any
	onProgress ProgressFunc
	terminal   *Outcome
}

func newSharedContext(onProgress ProgressFunc) *sharedContext {
	if onProgress == nil {
		onProgress = func(string, Phase) {}
	}
	return &sharedContext{
		data:       map[string]any{},
		session:    map[string]any{},
		onProgress: onProgress,
	}
}

// mergeData deep-merges `partial` into the result data, the last writer wins on leaf
// collisions.
func (c *sharedContext) mergeData(partial map[string]any) {
	if len(partial) == 0 {
		return
	}
	copied := cloneData(partial)
	err := mergo.Merge(&c.data, copied, mergo.WithOverride)
	if err != nil {
		// both sides are map[string]any, mergo has nothing to reject. keep the
		// no-failure contract regardless.
		for k, v := range copied {
			c.data[k] = v
		}
	}
}

func (c *sharedContext) hasSessionKey(key string) bool {
	_, ok := c.session[key]
	return ok
}

func (c *sharedContext) getSessionValue(key string) (any, bool) {
	value, ok := c.session[key]
	return value, ok
}

func (c *sharedContext) setSessionValue(key string, value any) {
	c.session[key] = value
}

func (c *sharedContext) deleteSessionValue(key string) {
	delete(c.session, key)
}

// setTerminalError records the failure of the run, only the first call has an effect.
func (c *sharedContext) setTerminalError(outcome Outcome) {
	if c.terminal != nil {
		return
	}
	c.terminal = &outcome
}

// cloneData deep-copies result data, normalizing every string-keyed map to map[string]any
// and every slice to []any so later merges never write into a caller's value or into a
// map with a narrower element type.
func cloneData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = cloneValue(reflect.ValueOf(v))
	}
	return out
}

func cloneValue(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return v.Interface()
		}
		if v.Kind() == reflect.Interface {
			return cloneValue(v.Elem())
		}
		return v.Interface()
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return v.Interface()
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = cloneValue(iter.Value())
		}
		return out
	case reflect.Slice:
		if v.IsNil() || v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Interface()
		}
		out := make([]any, v.Len())
		for i := range out {
			out[i] = cloneValue(v.Index(i))
		}
		return out
	default:
		return v.Interface()
	}
}
