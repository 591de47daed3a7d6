package pullrequest

import (
	"context"
	"errors"
	"fmt"

	"eolsweep/internal/storage"
)

// ErrAlreadyOpen means a pull request for the same change already exists.
var ErrAlreadyOpen = errors.New("pullrequest: already open")

// Publisher hands a plan to whatever hosts pull requests.
type Publisher interface {
	Exists(ctx context.Context, p Plan) (bool, error)
	Publish(ctx context.Context, p Plan) error
}

// FilePublisher writes plans next to the stored changes.
type FilePublisher struct {
	Store *storage.ChangeStore
}

// Exists reports whether a plan was already written for the repository.
func (f FilePublisher) Exists(_ context.Context, p Plan) (bool, error) {
	return f.Store.HasPlan(p.Repository)
}

// Publish writes the plan, refusing to overwrite an existing one.
func (f FilePublisher) Publish(ctx context.Context, p Plan) error {
	exists, err := f.Exists(ctx, p)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrAlreadyOpen, p.Repository)
	}
	if _, err := f.Store.SavePlan(p.Repository, []byte(p.Markdown())); err != nil {
		return fmt.Errorf("pullrequest: publish %s: %w", p.Repository, err)
	}
	return nil
}
