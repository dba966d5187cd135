package sova

import (
	"fmt"
	"log/slog"
	"sync"
)

// Version of the access layer, reported by Environment.Version.
const Version = "1.0.0"

// Status is the environment lifecycle state.
type Status int

const (
	StatusClosed Status = iota
	StatusOpen
)

func (s Status) String() string {
	if s == StatusOpen {
		return "open"
	}
	return "closed"
}

// EngineKind selects one of the shipped engine backends.
type EngineKind int

const (
	// EnginePebble is the default: an LSM store with cheap snapshots.
	EnginePebble EngineKind = iota
	// EngineBolt stores everything in a single Bolt file.
	EngineBolt
	// EngineMemory is transient, intended for tests.
	EngineMemory
)

type Options struct {
	Engine    EngineKind
	Logger    *slog.Logger
	IsTesting bool

	// OpenEngine overrides the backend entirely; when set, Engine is ignored.
	OpenEngine func(path string, opt Options) (Engine, error)
}

// Environment owns the set of named databases, their schemas and the engine
// lifecycle. Databases are registered while closed; Open materializes the
// engine handle and Close releases it. All mutation paths (direct writes,
// transactions) go through the environment's engine.
type Environment struct {
	path   string
	opt    Options
	logger *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	status Status
	engine Engine
	dbs    map[string]*Database
	order  []*Database

	// Optimistic concurrency bookkeeping: seq advances on every transaction
	// commit, commits maps encoded keys to the seq that last wrote them, and
	// active holds begun-but-unresolved transactions.
	seq     uint64
	commits map[string]uint64
	active  map[*Txn]struct{}

	// memKeepalive preserves EngineMemory contents across close/reopen
	// cycles, mirroring the durability of the on-disk backends.
	memKeepalive *memEngine
}

func New(path string, opt Options) *Environment {
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	env := &Environment{
		path:    path,
		opt:     opt,
		logger:  logger,
		dbs:     make(map[string]*Database),
		commits: make(map[string]uint64),
		active:  make(map[*Txn]struct{}),
	}
	env.cond = sync.NewCond(&env.mu)
	return env
}

// AddDatabase registers a named keyspace with the given schema. Registration
// is only possible while the environment is closed; the engine's keyspace
// definitions are fixed at open time.
func (env *Environment) AddDatabase(name string, schema *Schema) (*Database, error) {
	env.mu.Lock()
	defer env.mu.Unlock()
	if env.status != StatusClosed {
		return nil, invalidStateErr("AddDatabase", "environment is open")
	}
	if name == "" {
		return nil, fmt.Errorf("empty database name")
	}
	if env.dbs[name] != nil {
		return nil, fmt.Errorf("database %q already registered", name)
	}
	if err := schema.validate(); err != nil {
		return nil, fmt.Errorf("database %q: %w", name, err)
	}
	db := &Database{
		env:    env,
		name:   name,
		schema: schema,
		keyPfx: appendEscaped(nil, []byte(name)),
	}
	db.reads = reads{src: db}
	env.dbs[name] = db
	env.order = append(env.order, db)
	return db, nil
}

// Open transitions closed -> open, instantiating the engine. Returns false
// when the environment is already open.
func (env *Environment) Open() (bool, error) {
	env.mu.Lock()
	defer env.mu.Unlock()
	if env.status == StatusOpen {
		return false, nil
	}

	var engine Engine
	var err error
	if env.opt.OpenEngine != nil {
		engine, err = env.opt.OpenEngine(env.path, env.opt)
	} else {
		switch env.opt.Engine {
		case EnginePebble:
			engine, err = openPebbleEngine(env.path, env.opt.IsTesting)
		case EngineBolt:
			engine, err = openBoltEngine(env.path, env.opt.IsTesting)
		case EngineMemory:
			if env.memKeepalive == nil {
				env.memKeepalive = newMemEngine()
			}
			engine = env.memKeepalive
		default:
			err = fmt.Errorf("unknown engine kind %d", env.opt.Engine)
		}
	}
	if err != nil {
		return false, engineErr("open", err)
	}

	env.engine = engine
	env.status = StatusOpen
	env.logger.Debug("environment opened", slog.String("path", env.path), slog.Int("databases", len(env.order)))
	return true, nil
}

// Close waits for in-flight transactions to resolve, then releases the
// engine. Returns false when the environment is already closed.
func (env *Environment) Close() (bool, error) {
	env.mu.Lock()
	defer env.mu.Unlock()
	if env.status == StatusClosed {
		return false, nil
	}
	for len(env.active) > 0 {
		env.cond.Wait()
	}

	err := env.engine.Close()
	env.engine = nil
	env.status = StatusClosed
	env.seq = 0
	env.commits = make(map[string]uint64)
	env.logger.Debug("environment closed", slog.String("path", env.path))
	if err != nil {
		return true, engineErr("close", err)
	}
	return true, nil
}

func (env *Environment) Status() Status {
	env.mu.Lock()
	defer env.mu.Unlock()
	return env.status
}

func (env *Environment) Version() string { return Version }

func (env *Environment) Path() string { return env.path }

// Database returns the registered database with the given name, or nil.
func (env *Environment) Database(name string) *Database {
	env.mu.Lock()
	defer env.mu.Unlock()
	return env.dbs[name]
}

// Databases returns all registered databases in registration order.
func (env *Environment) Databases() []*Database {
	env.mu.Lock()
	defer env.mu.Unlock()
	return append([]*Database(nil), env.order...)
}

// engineHandle returns the engine while open.
func (env *Environment) engineHandle() (Engine, error) {
	env.mu.Lock()
	defer env.mu.Unlock()
	if env.status != StatusOpen {
		return nil, invalidStateErr("access", "environment is closed")
	}
	return env.engine, nil
}
