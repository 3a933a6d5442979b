// SPDX-License-Identifier: MPL-2.0

package release

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/natrelease/natrelease/internal/nexus"
)

type (
	// Clock abstracts time for polling so tests can run many attempts
	// without sleeping.
	Clock interface {
		Now() time.Time
		After(d time.Duration) <-chan time.Time
	}

	systemClock struct{}

	// poller waits for a staging repository to reach a phase goal, waiting
	// interval before each of at most attempts reads.
	poller struct {
		staging  Staging
		clock    Clock
		logger   *log.Logger
		interval time.Duration
		attempts int
	}

	// settleFunc inspects one read. It returns done when the phase finished,
	// or an error that ends polling.
	settleFunc func(repo nexus.Repository, err error) (done bool, _ error)
)

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// wait polls repositoryID until settle reports done. It performs exactly
// p.attempts reads before giving up with a *ReleaseTimeoutError.
func (p *poller) wait(ctx context.Context, module, repositoryID string, phase Phase, settle settleFunc) error {
	for attempt := 1; attempt <= p.attempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.clock.After(p.interval):
		}

		repo, err := p.staging.Repository(ctx, repositoryID)
		done, err := settle(repo, err)
		if err != nil {
			return err
		}
		if done {
			p.logger.Debug("repository settled", "module", module, "repository", repositoryID, "phase", phase, "attempt", attempt)
			return nil
		}
		p.logger.Debug("repository transitioning", "module", module, "repository", repositoryID, "phase", phase, "attempt", attempt)
	}

	return &ReleaseTimeoutError{Module: module, RepositoryID: repositoryID, Phase: phase, Attempts: p.attempts}
}

// closed settles once the repository is closed. A repository that stops
// transitioning while still open with rule failures did not pass validation.
func closed(repo nexus.Repository, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	if repo.Transitioning {
		return false, nil
	}
	switch {
	case repo.Type == nexus.TypeClosed:
		return true, nil
	case repo.Type == nexus.TypeOpen && repo.Notifications > 0:
		return false, &ValidationError{RepositoryID: repo.ID, Notifications: repo.Notifications}
	default:
		return false, nil
	}
}

// released settles once the repository is released. Promoted repositories
// are dropped automatically, so a missing repository counts as released.
func released(repo nexus.Repository, err error) (bool, error) {
	if errors.Is(err, nexus.ErrRepositoryNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return !repo.Transitioning && repo.Type == nexus.TypeReleased, nil
}
