package application

import (
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/order-saga/pkg/memtx"
	"github.com/iota-uz/order-saga/pkg/outbox"
	"github.com/iota-uz/order-saga/pkg/outbox/memory"
	"github.com/iota-uz/order-saga/pkg/outbox/postgres"
)

func (app *application) NewOutbox(name string) (*outbox.Outbox, *memtx.DB, error) {
	if pool := app.Pool(name); pool != nil {
		table := app.opts.OutboxTable
		if len(table) == 0 {
			table = pgx.Identifier{postgres.DefaultTable}
		}
		app.logger.WithFields(logrus.Fields{
			"outbox": name,
			"table":  outbox.TableLabel(table),
		}).Debug("outbox: using postgres store")
		store := postgres.New(pool, table)
		ob, err := outbox.New(name, store, store.Transactor())
		if err != nil {
			return nil, nil, err
		}
		var locker outbox.Locker
		if app.opts.SingleActive {
			locker = postgres.NewLocker(pool, name)
		}
		if err := app.RegisterOutbox(ob, locker); err != nil {
			return nil, nil, err
		}
		return ob, nil, nil
	}

	db := memtx.New()
	ob, err := outbox.New(name, memory.New(db), db)
	if err != nil {
		return nil, nil, err
	}
	if err := app.RegisterOutbox(ob, nil); err != nil {
		return nil, nil, err
	}
	return ob, db, nil
}
