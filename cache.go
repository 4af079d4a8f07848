package posterkit

import (
	"errors"
	"sync"
	"time"

	"github.com/eringen/posterkit/poster"
)

// ErrNotFound is returned when a requested template does not exist.
var ErrNotFound = errors.New("posterkit: not found")

// TemplateCache is an in-memory copy of the template catalog with TTL.
type TemplateCache struct {
	mu        sync.RWMutex
	templates []poster.Template
	fetched   time.Time
	ttl       time.Duration
	store     *Store
}

// NewTemplateCache creates a TemplateCache backed by the given Store.
func NewTemplateCache(s *Store, ttl time.Duration) *TemplateCache {
	return &TemplateCache{store: s, ttl: ttl}
}

func (c *TemplateCache) valid() bool {
	return c.templates != nil && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *TemplateCache) Invalidate() {
	c.mu.Lock()
	c.templates = nil
	c.mu.Unlock()
}

// ensureLoaded returns the cached catalog, reloading it when stale. It
// tries a read lock first and only takes the write lock to reload.
func (c *TemplateCache) ensureLoaded() ([]poster.Template, error) {
	c.mu.RLock()
	if c.valid() {
		t := c.templates
		c.mu.RUnlock()
		return t, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid() {
		return c.templates, nil
	}
	templates, err := c.store.ListTemplates()
	if err != nil {
		return nil, err
	}
	if templates == nil {
		templates = []poster.Template{}
	}
	c.templates = templates
	c.fetched = time.Now()
	return c.templates, nil
}

// List returns the catalog in display order. The slice is shared; do not
// modify it.
func (c *TemplateCache) List() ([]poster.Template, error) {
	return c.ensureLoaded()
}

// Get returns a template by name, or ErrNotFound.
func (c *TemplateCache) Get(name string) (poster.Template, error) {
	templates, err := c.ensureLoaded()
	if err != nil {
		return poster.Template{}, err
	}
	if t, ok := poster.FindTemplate(templates, name); ok {
		return t, nil
	}
	return poster.Template{}, ErrNotFound
}

// First returns the first template of the catalog, or nil when empty.
func (c *TemplateCache) First() (*poster.Template, error) {
	templates, err := c.ensureLoaded()
	if err != nil || len(templates) == 0 {
		return nil, err
	}
	t := templates[0]
	return &t, nil
}
