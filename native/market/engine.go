package market

import (
	"errors"
	"log/slog"
	"math"

	"github.com/holiman/uint256"

	"farmmarket/core/events"
	"farmmarket/native/bank"
	"farmmarket/observability/metrics"
	"farmmarket/storage"
)

const (
	msPerHour          = 3_600_000
	defaultMaxAttempts = 8

	kindProduct = "product"
	kindOrder   = "order"
	kindDispute = "dispute"
	kindCap     = "cap"
)

// Engine runs the catalog, order and dispute state machine on top of a Store.
// Every operation executes in its own transaction and is retried from scratch
// when the commit loses an optimistic race, so preconditions are always
// evaluated against the state that is finally written.
type Engine struct {
	store       Store
	emitter     events.Emitter
	clock       Clock
	logger      *slog.Logger
	metrics     *metrics.MarketMetrics
	settings    Settings
	ledger      func(bank.State) Ledger
	maxAttempts int
}

// NewEngine creates an engine over store with a no-op emitter, the system
// clock and the default logger.
func NewEngine(store Store) *Engine {
	return &Engine{
		store:       store,
		emitter:     events.NoopEmitter{},
		clock:       Monotonic(SystemClock{}),
		logger:      slog.Default(),
		ledger:      defaultLedger,
		maxAttempts: defaultMaxAttempts,
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetClock overrides the time source. Passing nil restores the system clock.
func (e *Engine) SetClock(clock Clock) {
	if clock == nil {
		clock = SystemClock{}
	}
	e.clock = Monotonic(clock)
}

func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

func (e *Engine) SetMetrics(m *metrics.MarketMetrics) { e.metrics = m }

func (e *Engine) SetSettings(settings Settings) { e.settings = settings }

func (e *Engine) Settings() Settings { return e.settings }

// SetLedgerFactory replaces the ledger bound to each transaction.
func (e *Engine) SetLedgerFactory(factory func(bank.State) Ledger) {
	if factory == nil {
		factory = defaultLedger
	}
	e.ledger = factory
}

// SetMaxAttempts bounds how many times an operation is re-run after a write
// conflict.
func (e *Engine) SetMaxAttempts(n int) {
	if n < 1 {
		n = 1
	}
	e.maxAttempts = n
}

func (e *Engine) now() int64 {
	if e.clock == nil {
		return SystemClock{}.Now()
	}
	return e.clock.Now()
}

// txnFunc performs one attempt of an operation and returns the events to emit
// once the attempt commits.
type txnFunc func(txn Txn, ledger Ledger) ([]events.Event, error)

func (e *Engine) update(op string, fn txnFunc) error {
	if e == nil || e.store == nil {
		return errNilStore
	}
	defer func() {
		if r := recover(); r != nil {
			e.metrics.ObserveAbort(op)
			panic(r)
		}
	}()
	var (
		emitted []events.Event
		err     error
	)
	for attempt := 1; ; attempt++ {
		emitted, err = e.attempt(fn)
		if err == nil || !errors.Is(err, storage.ErrConflict) || attempt >= e.maxAttempts {
			break
		}
		e.metrics.IncConflict(op)
		e.logger.Debug("market commit conflict, retrying", "operation", op, "attempt", attempt)
	}
	e.metrics.ObserveOperation(op, err)
	if err != nil {
		return err
	}
	for _, evt := range emitted {
		e.emitter.Emit(evt)
	}
	return nil
}

func (e *Engine) attempt(fn txnFunc) ([]events.Event, error) {
	txn := e.store.Begin()
	defer txn.Discard()
	emitted, err := fn(txn, e.ledger(txn))
	if err != nil {
		return nil, err
	}
	if err := txn.Commit(); err != nil {
		return nil, err
	}
	return emitted, nil
}

// view runs fn in a read-only transaction that is always discarded.
func (e *Engine) view(fn func(txn Txn, ledger Ledger) error) error {
	if e == nil || e.store == nil {
		return errNilStore
	}
	txn := e.store.Begin()
	defer txn.Discard()
	return fn(txn, e.ledger(txn))
}

// orderTotal returns unitPrice*quantity and panics with ErrArithmeticOverflow
// when the product does not fit in 64 bits.
func orderTotal(unitPrice, quantity uint64) uint64 {
	total, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(unitPrice), uint256.NewInt(quantity))
	if overflow || !total.IsUint64() {
		panic(ErrArithmeticOverflow)
	}
	return total.Uint64()
}

// orderDeadline returns now + hours in milliseconds and panics with
// ErrArithmeticOverflow when the result leaves the int64 range.
func orderDeadline(now int64, hours uint64) int64 {
	offset, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(hours), uint256.NewInt(msPerHour))
	limit := uint256.NewInt(math.MaxInt64)
	if now > 0 {
		limit.SubUint64(limit, uint64(now))
	}
	if overflow || offset.Gt(limit) {
		panic(ErrArithmeticOverflow)
	}
	return now + int64(offset.Uint64())
}

// farmerShare returns floor(total*pct/100). The buyer receives the remainder.
func farmerShare(total uint64, pct uint8) uint64 {
	share := new(uint256.Int).Mul(uint256.NewInt(total), uint256.NewInt(uint64(pct)))
	share.Div(share, uint256.NewInt(100))
	return share.Uint64()
}
