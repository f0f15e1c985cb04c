package persistence

import (
	"context"
	"errors"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iota-uz/order-saga/modules/order/domain/aggregates/order"
	"github.com/iota-uz/order-saga/pkg/saga"
)

const DefaultCollection = "order"

type productDocument struct {
	Code      string `bson:"code"`
	UnitValue string `bson:"unit_value"`
	Quantity  int    `bson:"quantity"`
}

type orderDocument struct {
	ID            string            `bson:"_id"`
	TransactionID string            `bson:"transaction_id"`
	Products      []productDocument `bson:"products"`
	TotalAmount   string            `bson:"total_amount"`
	TotalItems    int               `bson:"total_items"`
	Status        string            `bson:"status"`
	CreatedAt     time.Time         `bson:"created_at"`
	FinishedAt    *time.Time        `bson:"finished_at,omitempty"`
}

func toDocument(o order.Order) orderDocument {
	products := make([]productDocument, 0, len(o.Products))
	for _, p := range o.Products {
		products = append(products, productDocument{
			Code:      p.Product.Code,
			UnitValue: p.Product.UnitValue.String(),
			Quantity:  p.Quantity,
		})
	}
	return orderDocument{
		ID:            o.ID,
		TransactionID: o.TransactionID,
		Products:      products,
		TotalAmount:   o.TotalAmount.String(),
		TotalItems:    o.TotalItems,
		Status:        string(o.Status),
		CreatedAt:     o.CreatedAt,
		FinishedAt:    o.FinishedAt,
	}
}

func (d orderDocument) toDomain() (order.Order, error) {
	products := make([]saga.OrderProduct, 0, len(d.Products))
	for _, p := range d.Products {
		unit, err := decimal.NewFromString(p.UnitValue)
		if err != nil {
			return order.Order{}, gerrors.Wrapf(err, "order %s: unit value of %s", d.ID, p.Code)
		}
		products = append(products, saga.OrderProduct{
			Product:  saga.Product{Code: p.Code, UnitValue: unit},
			Quantity: p.Quantity,
		})
	}
	total, err := decimal.NewFromString(d.TotalAmount)
	if err != nil {
		return order.Order{}, gerrors.Wrapf(err, "order %s: total amount", d.ID)
	}
	return order.Order{
		ID:            d.ID,
		TransactionID: d.TransactionID,
		Products:      products,
		TotalAmount:   total,
		TotalItems:    d.TotalItems,
		Status:        order.Status(d.Status),
		CreatedAt:     d.CreatedAt,
		FinishedAt:    d.FinishedAt,
	}, nil
}

// MongoOrderRepository joins the session bound to ctx, so it runs inside the
// outbox transaction when called from one.
type MongoOrderRepository struct {
	coll *mongo.Collection
}

func NewMongoOrderRepository(db *mongo.Database, collection string) *MongoOrderRepository {
	if collection == "" {
		collection = DefaultCollection
	}
	return &MongoOrderRepository{coll: db.Collection(collection)}
}

func (r *MongoOrderRepository) GetByID(ctx context.Context, id string) (order.Order, error) {
	var doc orderDocument
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return order.Order{}, order.ErrOrderNotFound
	}
	if err != nil {
		return order.Order{}, gerrors.Wrap(err, "find order")
	}
	return doc.toDomain()
}

func (r *MongoOrderRepository) Save(ctx context.Context, o order.Order) error {
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": o.ID}, toDocument(o), options.Replace().SetUpsert(true))
	if err != nil {
		return gerrors.Wrap(err, "save order")
	}
	return nil
}
