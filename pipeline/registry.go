package pipeline

import (
	"sync"

	"github.com/minios-linux/transdiff/translate"
)

// Factory builds a Translator for a language tag.
type Factory func(lang string) (translate.Translator, error)

// registry hands out one Translator per language tag, built on first use.
// A failed construction is remembered, so every document of that language
// fails with the same error and the factory is not retried.
type registry struct {
	factory Factory

	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	once sync.Once
	tr   translate.Translator
	err  error
}

func newRegistry(factory Factory) *registry {
	return &registry{
		factory: factory,
		entries: make(map[string]*registryEntry),
	}
}

func (r *registry) get(lang string) (translate.Translator, error) {
	r.mu.Lock()
	e, ok := r.entries[lang]
	if !ok {
		e = &registryEntry{}
		r.entries[lang] = e
	}
	r.mu.Unlock()

	// Construction runs outside r.mu so other languages are not blocked.
	e.once.Do(func() {
		e.tr, e.err = r.factory(lang)
	})
	return e.tr, e.err
}
