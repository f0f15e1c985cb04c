package mongo

import (
	"context"

	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"github.com/iota-uz/order-saga/pkg/outbox"
)

// Transactor runs fn inside a multi-document transaction. A session already
// bound to ctx is joined. Requires a replica set or sharded cluster.
type Transactor struct {
	client *mongodriver.Client
}

var _ outbox.Transactor = (*Transactor)(nil)

func NewTransactor(client *mongodriver.Client) *Transactor {
	return &Transactor{client: client}
}

func (t *Transactor) InTx(ctx context.Context, fn func(context.Context) error) error {
	if mongodriver.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	sess, err := t.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongodriver.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}
