package overlay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/poku-e/craftbom/internal/catalog"
)

// Source provides the current base catalog. catalog.Client satisfies it.
type Source interface {
	Fetch(ctx context.Context) (catalog.Catalog, error)
}

// Publisher replaces the shared collections. catalog.Client satisfies it.
type Publisher interface {
	SaveMaterials(ctx context.Context, items []catalog.Material) error
	SaveQuests(ctx context.Context, items []catalog.Quest) error
}

// Synchronizer combines a fetched base with the persisted overlay. It holds no
// catalog state between calls; every call fetches and reads afresh.
type Synchronizer struct {
	source Source
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Synchronizer)

func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the SavedAt timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

func NewSynchronizer(source Source, store Store, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		source: source,
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Persist replaces the stored overlay.
func (s *Synchronizer) Persist(ctx context.Context, o *UserOverlay) error {
	data, err := Encode(o)
	if err != nil {
		return fmt.Errorf("encode overlay: %w", err)
	}
	if err := s.store.Set(ctx, data); err != nil {
		return fmt.Errorf("persist overlay: %w", err)
	}
	return nil
}

// Read returns the stored overlay, or nil when there is none. A blob that is
// not a JSON object is reported as absent.
func (s *Synchronizer) Read(ctx context.Context) (*UserOverlay, error) {
	data, err := s.store.Get(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read overlay: %w", err)
	}
	o, err := Decode(data)
	if err != nil {
		s.logger.Warn("ignoring unreadable overlay", "error", err, "bytes", len(data))
		return nil, nil
	}
	return o, nil
}

// Clear removes the stored overlay.
func (s *Synchronizer) Clear(ctx context.Context) error {
	if err := s.store.Remove(ctx); err != nil {
		return fmt.Errorf("clear overlay: %w", err)
	}
	return nil
}

// State is the outcome of LoadEffective. BaseDrifted is advisory: the base
// changed after the overlay was captured.
type State struct {
	Base        catalog.Catalog
	Effective   catalog.Catalog
	HasOverlay  bool
	SavedAt     time.Time
	BaseDrifted bool
}

// LoadEffective fetches the base, reads the overlay and applies it.
func (s *Synchronizer) LoadEffective(ctx context.Context) (*State, error) {
	base, err := s.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	o, err := s.Read(ctx)
	if err != nil {
		return nil, err
	}
	st := &State{
		Base:      base,
		Effective: Apply(base, o),
	}
	if o == nil {
		return st, nil
	}
	st.HasOverlay = true
	st.SavedAt = o.SavedAt
	if o.BaseSignature != "" {
		if current := Fingerprint(base); current != o.BaseSignature {
			st.BaseDrifted = true
			s.logger.Warn("base catalog changed since overlay was saved",
				"saved_signature", o.BaseSignature, "current_signature", current)
		}
	}
	return st, nil
}

// SaveEffective diffs effective against base and persists the result. A nil
// base is fetched first.
func (s *Synchronizer) SaveEffective(ctx context.Context, effective catalog.Catalog, base *catalog.Catalog) (*UserOverlay, error) {
	var b catalog.Catalog
	if base != nil {
		b = *base
	} else {
		fetched, err := s.source.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		b = fetched
	}
	o := Diff(b, effective, s.now())
	if err := s.Persist(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// Publish writes effective to the shared catalog and then saves the local
// overlay regardless of the remote outcome, so local edits are never lost.
// Collections whose remote write succeeded are diffed against their new
// remote content; the others against base. A remote failure is returned
// together with the saved overlay.
func (s *Synchronizer) Publish(ctx context.Context, pub Publisher, effective catalog.Catalog, base *catalog.Catalog) (*UserOverlay, error) {
	var b catalog.Catalog
	if base != nil {
		b = *base
	} else {
		fetched, err := s.source.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		b = fetched
	}

	var (
		wg   sync.WaitGroup
		mErr error
		qErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		mErr = pub.SaveMaterials(ctx, effective.Materials)
	}()
	go func() {
		defer wg.Done()
		qErr = pub.SaveQuests(ctx, effective.Quests)
	}()
	wg.Wait()

	remote := b
	if mErr == nil {
		remote.Materials = effective.Materials
	}
	if qErr == nil {
		remote.Quests = effective.Quests
	}

	o, err := s.SaveEffective(ctx, effective, &remote)
	if err != nil {
		return nil, errors.Join(err, mErr, qErr)
	}
	if pubErr := errors.Join(mErr, qErr); pubErr != nil {
		s.logger.Warn("shared catalog write failed; local overlay saved", "error", pubErr)
		return o, fmt.Errorf("publish catalog: %w", pubErr)
	}
	return o, nil
}
