package pipeline

import (
	"finscraper/internal/assert"
)

// SessionKey is the type-erased side of Key, used to declare preconditions.
type SessionKey interface {
	Name() string
	Has(view *View) bool
}

// Key is a session data key whose value type is fixed. Adapters agree on keys, not on each
// other, so a producer storing the wrong type shows up as "missing" in the consumer's
// validation instead of a panic in its action.
//
// Keys share one flat namespace, prefix them with the owning component ("http.client").
type Key[T any] struct {
	name string
}

func NewKey[T any](name string) Key[T] {
	assert.NotEmptyStr(name)
	return Key[T]{name: name}
}

func (k Key[T]) Name() string {
	return k.name
}

// Get returns the stored value, the bool is false if nothing is stored or the stored value
// is not a T.
func (k Key[T]) Get(view *View) (T, bool) {
	var zero T
	value, ok := view.GetSessionData(k.name)
	if !ok {
		return zero, false
	}
	typed, ok := value.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

func (k Key[T]) Has(view *View) bool {
	_, ok := k.Get(view)
	return ok
}

func (k Key[T]) Set(view *View, value T) {
	view.SetSessionData(k.name, value)
}

func (k Key[T]) Delete(view *View) {
	view.DeleteSessionData(k.name)
}
