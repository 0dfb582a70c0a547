package execution

import (
	"context"
	"crypto/rand"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cube2222/cursorql"
)

// QueryContext is the state shared by all cursors of a single query execution.
// It's read by every cursor and never modified concurrently, apart from Cancel.
type QueryContext struct {
	Context     context.Context
	ID          ulid.ULID
	Adapter     StorageAdapter
	Constraints ConstraintChecker
	Log         *logrus.Entry

	cancel context.CancelFunc
}

type QueryContextOption func(qc *QueryContext)

func WithStorageAdapter(adapter StorageAdapter) QueryContextOption {
	return func(qc *QueryContext) {
		qc.Adapter = adapter
	}
}

func WithConstraintChecker(checker ConstraintChecker) QueryContextOption {
	return func(qc *QueryContext) {
		qc.Constraints = checker
	}
}

func WithLogger(log *logrus.Entry) QueryContextOption {
	return func(qc *QueryContext) {
		qc.Log = log
	}
}

func NewQueryContext(ctx context.Context, opts ...QueryContextOption) *QueryContext {
	ctx, cancel := context.WithCancel(ctx)
	qc := &QueryContext{
		Context:     ctx,
		ID:          ulid.MustNew(ulid.Now(), rand.Reader),
		Constraints: noConstraints{},
		Log:         logrus.NewEntry(logrus.StandardLogger()),
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(qc)
	}
	qc.Log = qc.Log.WithField("query", qc.ID.String())
	return qc
}

// Cancel sets the cancellation flag. Running cursors will fail with ErrQueryCanceled
// on their next call to Next.
func (qc *QueryContext) Cancel() {
	qc.cancel()
}

func (qc *QueryContext) CheckCancelation() error {
	select {
	case <-qc.Context.Done():
		return errors.Wrap(ErrQueryCanceled, qc.Context.Err().Error())
	default:
		return nil
	}
}

func (qc *QueryContext) logger(operator string) *logrus.Entry {
	return qc.Log.WithField("operator", operator)
}

func (qc *QueryContext) traceEnabled() bool {
	return qc.Log.Logger.IsLevelEnabled(logrus.DebugLevel)
}

type noConstraints struct{}

func (noConstraints) Check(string, cursorql.Row) error {
	return nil
}
