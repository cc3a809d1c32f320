package identitystore

import (
	"context"
	"time"

	"github.com/shirady/noobaa-core/pkg/logger"
)

// Store is the account and access-key identity store: the filesystem
// layout, authorization, and lifecycle operations spec.md describes,
// wired together over a configuration root directory.
//
// The store holds no mutex over account files or the symlink index
// (§6/SPEC_FULL.md §6): concurrent writers on the same account race on the
// final rename, the loser's write is silently dropped. This is a
// deliberate divergence from a mutex-guarded store -- callers needing
// read-modify-write consistency on a single account must serialize
// externally.
type Store struct {
	paths       pathResolver
	configFiles *configFileEngine
	symlinks    *symlinkIndexEngine

	masterKeys       MasterKeyManager
	cacheInvalidator CacheInvalidator

	// clock exists only so tests can pin down CreationDate/LastUsedDate
	// output; production callers never override it.
	clock func() time.Time
}

// Option configures a Store at construction.
type Option func(*Store)

// WithClock overrides the Store's time source. Exposed for tests that need
// deterministic timestamps; production code should not use this.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// NewStore builds a Store rooted at root, wiring the Config File Engine and
// Symlink Index Engine over it, plus the two narrow external collaborators.
// It calls masterKeys.ActiveKeyID once to confirm the manager has been
// initialized (spec.md §5: "the core calls init() idempotently before
// first use" is the master-key manager's own responsibility; the store
// just needs ActiveKeyID to succeed).
func NewStore(ctx context.Context, root string, masterKeys MasterKeyManager, cacheInvalidator CacheInvalidator, opts ...Option) (*Store, error) {
	paths := newPathResolver(root)

	configFiles, err := newConfigFileEngine(paths)
	if err != nil {
		return nil, err
	}

	s := &Store{
		paths:            paths,
		configFiles:      configFiles,
		symlinks:         newSymlinkIndexEngine(paths),
		masterKeys:       masterKeys,
		cacheInvalidator: cacheInvalidator,
		clock:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := masterKeys.ActiveKeyID(ctx); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("master key manager not yet initialized")
	}

	return s, nil
}

func (s *Store) now() time.Time {
	return s.clock()
}
