package membership

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/casbin/casbin/v3"
	"github.com/fsnotify/fsnotify"
)

// CasbinOptions configures the casbin backend.
type CasbinOptions struct {
	// ModelPath is a casbin model declaring a role definition "g = _, _".
	ModelPath string
	// PolicyPath holds "g, <username>, <group>" lines.
	PolicyPath string
	// Watch reloads the policy when the file changes.
	Watch bool
}

// Casbin resolves membership with the casbin role manager.
type Casbin struct {
	mu       sync.RWMutex
	enforcer *casbin.Enforcer
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewCasbin loads the model and policy files.
func NewCasbin(opts CasbinOptions) (*Casbin, error) {
	if opts.ModelPath == "" || opts.PolicyPath == "" {
		return nil, errors.New("membership: casbin model and policy paths are required")
	}

	e, err := casbin.NewEnforcer(opts.ModelPath, opts.PolicyPath)
	if err != nil {
		return nil, err
	}

	c := &Casbin{enforcer: e, done: make(chan struct{})}
	if !opts.Watch {
		return c, nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Editors replace files on save, so watch the directory.
	if err := w.Add(filepath.Dir(opts.PolicyPath)); err != nil {
		w.Close()
		return nil, err
	}
	c.watcher = w

	go c.watch(filepath.Clean(opts.PolicyPath))

	return c, nil
}

func (c *Casbin) watch(policyPath string) {
	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != policyPath || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			c.mu.Lock()
			err := c.enforcer.LoadPolicy()
			c.mu.Unlock()
			if err != nil {
				slog.Error("membership policy reload failed", "path", policyPath, "error", err)
				continue
			}
			slog.Info("membership policy reloaded", "path", policyPath)
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("membership policy watcher error", "error", err)
		}
	}
}

// IsMember reports whether the policy assigns group to username, directly or
// through inherited roles.
func (c *Casbin) IsMember(_ context.Context, group, username string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	roles, err := c.enforcer.GetImplicitRolesForUser(username)
	if err != nil {
		return false, err
	}

	for _, r := range roles {
		if r == group {
			return true, nil
		}
	}

	return false, nil
}

// Close stops the policy watcher, if any.
func (c *Casbin) Close() error {
	if c.watcher == nil {
		return nil
	}
	close(c.done)
	return c.watcher.Close()
}
