package registry

import (
	"context"

	"github.com/kbukum/ioc/errors"
	"github.com/kbukum/ioc/logger"
)

// SetInCreationCheck enables or disables the in-creation check for name.
// Names with the check disabled are never marked in creation, so re-entrant
// requests for them do not fail and they never resolve early.
func (r *Registry) SetInCreationCheck(name string, enabled bool) {
	if enabled {
		r.exclusions.Delete(name)
	} else {
		r.exclusions.Store(name, struct{}{})
	}
}

func (r *Registry) excluded(name string) bool {
	_, ok := r.exclusions.Load(name)
	return ok
}

// IsCurrentlyInCreation reports whether name is in creation and subject to
// the in-creation check.
func (r *Registry) IsCurrentlyInCreation(name string) bool {
	return !r.excluded(name) && r.IsActuallyInCreation(name)
}

// IsActuallyInCreation reports whether name is in creation.
func (r *Registry) IsActuallyInCreation(name string) bool {
	_, ok := r.inCreation.Load(name)
	return ok
}

func (r *Registry) beforeCreation(name string) error {
	if r.excluded(name) {
		return nil
	}
	if _, loaded := r.inCreation.LoadOrStore(name, struct{}{}); loaded {
		return errors.CurrentlyInCreation(name)
	}
	return nil
}

func (r *Registry) afterCreation(name string) {
	if r.excluded(name) {
		return
	}
	if _, ok := r.inCreation.LoadAndDelete(name); !ok {
		r.log.Warn("instance was not marked in creation", logger.Fields(logger.FieldInstance, name))
	}
}

// OnSuppressed records a failure that was tolerated during construction.
// Failures recorded while an outermost GetOrCreate is running are attached as
// related causes if that construction fails; otherwise they are dropped.
func (r *Registry) OnSuppressed(ctx context.Context, err error) {
	if err == nil {
		return
	}
	_, release := r.lock(ctx)
	defer release()
	if r.recording {
		r.suppressed = append(r.suppressed, err)
	}
}
