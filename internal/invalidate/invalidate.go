// Package invalidate turns a library ChangeSet into a prioritized plan of
// cache-invalidation tasks and executes it against a Cache (spec §4.3).
package invalidate

import (
	"fmt"
	"strings"

	multierror "github.com/hashicorp/go-multierror"

	"github.com/barad1tos/reconciler/internal/kinds"
	"github.com/barad1tos/reconciler/internal/model"
)

// Priority is a closed variant for invalidation-task urgency.
type Priority int

const (
	Immediate Priority = iota
	High
	Normal
	Low
)

// Task is a single cache-key invalidation to perform.
type Task struct {
	Key      string
	Priority Priority
}

// Plan groups tasks by priority tier.
type Plan struct {
	Immediate []Task
	High      []Task
	Normal    []Task
	Low       []Task
}

func (p *Plan) add(key string, priority Priority) {
	task := Task{Key: key, Priority: priority}
	switch priority {
	case Immediate:
		p.Immediate = append(p.Immediate, task)
	case High:
		p.High = append(p.High, task)
	case Normal:
		p.Normal = append(p.Normal, task)
	default:
		p.Low = append(p.Low, task)
	}
}

// Cache is whatever invalidation targets: the cache orchestrator.
type Cache interface {
	Invalidate(key string) error
}

// DependencyPatterns maps a pattern containing the literal substring
// "{track_id}" to the set of dependency key templates it resolves to. Each
// dependency key may itself contain "{track_id}", which is substituted with
// the changed track's id before the key is queued for invalidation.
type DependencyPatterns map[string][]string

// trackKey and processedKey mirror the direct/derived key pair every
// deleted or modified track produces.
func trackKey(id string) string     { return "track:" + id }
func processedKey(id string) string { return "processed_track:" + id }

const allSentinelKey = "ALL"

// BuildPlan produces an InvalidationPlan from a ChangeSet, resolving any
// dependency pattern that mentions a changed track id.
func BuildPlan(cs *model.ChangeSet, patterns DependencyPatterns) *Plan {
	plan := &Plan{}

	for id := range cs.Deleted {
		plan.add(trackKey(id), Immediate)
		plan.add(processedKey(id), Immediate)
	}

	for id := range cs.Modified {
		plan.add(trackKey(id), High)
		plan.add(processedKey(id), High)
		for pattern, deps := range patterns {
			if !strings.Contains(pattern, "{track_id}") {
				continue
			}
			for _, dep := range deps {
				plan.add(strings.ReplaceAll(dep, "{track_id}", id), Normal)
			}
		}
	}

	if len(cs.Added) > 0 {
		plan.add(allSentinelKey, Normal)
	}

	return plan
}

// Execute runs Immediate and High tiers synchronously; Normal and Low only
// run when executeAll is true. Immediate failures abort with
// kinds.ErrCriticalInvalidationFailure; lower-tier failures are collected
// but do not abort.
func Execute(plan *Plan, cache Cache, executeAll bool) error {
	for _, task := range plan.Immediate {
		if err := cache.Invalidate(task.Key); err != nil {
			return fmt.Errorf("%w: key %q: %w", kinds.ErrCriticalInvalidationFailure, task.Key, err)
		}
	}

	var collected *multierror.Error
	for _, task := range plan.High {
		if err := cache.Invalidate(task.Key); err != nil {
			collected = multierror.Append(collected, fmt.Errorf("key %q: %w", task.Key, err))
		}
	}

	if !executeAll {
		return collected.ErrorOrNil()
	}

	for _, task := range plan.Normal {
		if err := cache.Invalidate(task.Key); err != nil {
			collected = multierror.Append(collected, fmt.Errorf("key %q: %w", task.Key, err))
		}
	}
	for _, task := range plan.Low {
		if err := cache.Invalidate(task.Key); err != nil {
			collected = multierror.Append(collected, fmt.Errorf("key %q: %w", task.Key, err))
		}
	}

	return collected.ErrorOrNil()
}
