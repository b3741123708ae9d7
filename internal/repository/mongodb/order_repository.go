package mongodb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sanketyelugotla/zlift-ledger/internal/domain"
	platformErrors "github.com/sanketyelugotla/zlift-ledger/internal/platform/errors"
	"github.com/sanketyelugotla/zlift-ledger/internal/repository/interfaces"
)

const ordersCollection = "orders"

// OrderRepository implements interfaces.OrderRepository using MongoDB
type OrderRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
}

// NewOrderRepository creates a MongoDB order repository and ensures its
// indexes exist
func NewOrderRepository(db *mongo.Database, queryTimeout time.Duration) (*OrderRepository, error) {
	repo := &OrderRepository{
		collection: db.Collection(ordersCollection),
		timeout:    queryTimeout,
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	_, err := repo.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "delivered_at", Value: 1}}},
		{Keys: bson.D{{Key: "partner_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "order_number", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return nil, platformErrors.Wrap(err, "failed to create order indexes")
	}

	return repo, nil
}

// Document models. Money is stored as strings so decimal amounts survive
// the round trip without binary floating point drift.

type orderDoc struct {
	ID          string         `bson:"_id"`
	OrderNumber string         `bson:"order_number"`
	CustomerID  string         `bson:"customer_id"`
	PartnerID   string         `bson:"partner_id"`
	Items       []orderItemDoc `bson:"items"`

	Subtotal    string `bson:"subtotal"`
	DeliveryFee string `bson:"delivery_fee"`
	Tax         string `bson:"tax"`
	Discount    string `bson:"discount"`
	TotalAmount string `bson:"total_amount"`

	Status   string             `bson:"status"`
	Timeline []timelineEntryDoc `bson:"timeline"`

	DroneID    *string `bson:"drone_id,omitempty"`
	OperatorID *string `bson:"operator_id,omitempty"`

	ConfirmedAt *time.Time `bson:"confirmed_at,omitempty"`
	PreparedAt  *time.Time `bson:"prepared_at,omitempty"`
	PickedUpAt  *time.Time `bson:"picked_up_at,omitempty"`
	DeliveredAt *time.Time `bson:"delivered_at,omitempty"`
	CancelledAt *time.Time `bson:"cancelled_at,omitempty"`

	GrossRevenue     string `bson:"gross_revenue"`
	CommissionAmount string `bson:"commission_amount"`
	PartnerPayout    string `bson:"partner_payout"`
	DeliveryCost     string `bson:"delivery_cost"`
	TransactionFees  string `bson:"transaction_fees"`
	NetProfit        string `bson:"net_profit"`
	ProfitMargin     string `bson:"profit_margin"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
	Version   int       `bson:"version"`
}

type orderItemDoc struct {
	ProductID string `bson:"product_id"`
	Name      string `bson:"name"`
	UnitPrice string `bson:"unit_price"`
	Quantity  int    `bson:"quantity"`
	LineTotal string `bson:"line_total"`
}

type timelineEntryDoc struct {
	Status    string    `bson:"status"`
	Timestamp time.Time `bson:"timestamp"`
	Note      string    `bson:"note,omitempty"`
}

// Create inserts a new order
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	doc := orderToDocument(order)
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return platformErrors.NewConflict("order already exists")
		}
		return platformErrors.Wrap(err, "failed to insert order")
	}
	return nil
}

// GetByID retrieves an order by its ID
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var doc orderDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, platformErrors.NewNotFound("order not found")
		}
		return nil, platformErrors.Wrap(err, "failed to get order")
	}
	return documentToOrder(&doc)
}

// Update writes the order back with an optimistic version check. The
// filter matches the version the order was loaded with; a miss means a
// concurrent writer won and the caller should reload and retry.
func (r *OrderRepository) Update(ctx context.Context, order *domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	loadedVersion := order.Version
	order.Version = loadedVersion + 1
	doc := orderToDocument(order)

	result, err := r.collection.ReplaceOne(ctx,
		bson.M{"_id": order.ID.String(), "version": loadedVersion},
		doc,
	)
	if err != nil {
		order.Version = loadedVersion
		return platformErrors.Wrap(err, "failed to update order")
	}
	if result.MatchedCount == 0 {
		order.Version = loadedVersion
		return platformErrors.NewConflict("order was modified concurrently")
	}
	return nil
}

// List retrieves orders matching the filter
func (r *OrderRepository) List(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := bson.M{}
	if filter.CustomerID != nil {
		query["customer_id"] = filter.CustomerID.String()
	}
	if filter.PartnerID != nil {
		query["partner_id"] = filter.PartnerID.String()
	}
	if filter.Status != nil {
		query["status"] = string(*filter.Status)
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}

	return r.findOrders(ctx, query, opts)
}

// FindCreatedBetween returns orders created in [from, to)
func (r *OrderRepository) FindCreatedBetween(ctx context.Context, from, to time.Time) ([]*domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := bson.M{"created_at": bson.M{"$gte": from, "$lt": to}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return r.findOrders(ctx, query, opts)
}

// FindDeliveredBetween returns delivered orders with delivered_at in [from, to)
func (r *OrderRepository) FindDeliveredBetween(ctx context.Context, from, to time.Time) ([]*domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := bson.M{
		"status":       string(domain.StatusDelivered),
		"delivered_at": bson.M{"$gte": from, "$lt": to},
	}
	opts := options.Find().SetSort(bson.D{{Key: "delivered_at", Value: 1}})
	return r.findOrders(ctx, query, opts)
}

func (r *OrderRepository) findOrders(ctx context.Context, query bson.M, opts *options.FindOptions) ([]*domain.Order, error) {
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, platformErrors.Wrap(err, "failed to query orders")
	}
	defer cursor.Close(ctx)

	var orders []*domain.Order
	for cursor.Next(ctx) {
		var doc orderDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, platformErrors.Wrap(err, "failed to decode order document")
		}
		order, err := documentToOrder(&doc)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := cursor.Err(); err != nil {
		return nil, platformErrors.Wrap(err, "order cursor error")
	}
	return orders, nil
}

// Converters between domain and document models

func orderToDocument(o *domain.Order) *orderDoc {
	doc := &orderDoc{
		ID:               o.ID.String(),
		OrderNumber:      o.OrderNumber,
		CustomerID:       o.CustomerID.String(),
		PartnerID:        o.PartnerID.String(),
		Subtotal:         o.Subtotal.String(),
		DeliveryFee:      o.DeliveryFee.String(),
		Tax:              o.Tax.String(),
		Discount:         o.Discount.String(),
		TotalAmount:      o.TotalAmount.String(),
		Status:           string(o.Status),
		ConfirmedAt:      o.ConfirmedAt,
		PreparedAt:       o.PreparedAt,
		PickedUpAt:       o.PickedUpAt,
		DeliveredAt:      o.DeliveredAt,
		CancelledAt:      o.CancelledAt,
		GrossRevenue:     o.GrossRevenue.String(),
		CommissionAmount: o.CommissionAmount.String(),
		PartnerPayout:    o.PartnerPayout.String(),
		DeliveryCost:     o.DeliveryCost.String(),
		TransactionFees:  o.TransactionFees.String(),
		NetProfit:        o.NetProfit.String(),
		ProfitMargin:     o.ProfitMargin.String(),
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		Version:          o.Version,
	}

	if o.DroneID != nil {
		s := o.DroneID.String()
		doc.DroneID = &s
	}
	if o.OperatorID != nil {
		s := o.OperatorID.String()
		doc.OperatorID = &s
	}

	doc.Items = make([]orderItemDoc, len(o.Items))
	for i, item := range o.Items {
		doc.Items[i] = orderItemDoc{
			ProductID: item.ProductID.String(),
			Name:      item.Name,
			UnitPrice: item.UnitPrice.String(),
			Quantity:  item.Quantity,
			LineTotal: item.LineTotal.String(),
		}
	}

	doc.Timeline = make([]timelineEntryDoc, len(o.Timeline))
	for i, entry := range o.Timeline {
		doc.Timeline[i] = timelineEntryDoc{
			Status:    string(entry.Status),
			Timestamp: entry.Timestamp,
			Note:      entry.Note,
		}
	}

	return doc
}

func documentToOrder(doc *orderDoc) (*domain.Order, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, platformErrors.Wrap(err, "invalid order id in document")
	}
	customerID, err := uuid.Parse(doc.CustomerID)
	if err != nil {
		return nil, platformErrors.Wrap(err, "invalid customer id in document")
	}
	partnerID, err := uuid.Parse(doc.PartnerID)
	if err != nil {
		return nil, platformErrors.Wrap(err, "invalid partner id in document")
	}

	order := &domain.Order{
		ID:               id,
		OrderNumber:      doc.OrderNumber,
		CustomerID:       customerID,
		PartnerID:        partnerID,
		Subtotal:         mustDecimal(doc.Subtotal),
		DeliveryFee:      mustDecimal(doc.DeliveryFee),
		Tax:              mustDecimal(doc.Tax),
		Discount:         mustDecimal(doc.Discount),
		TotalAmount:      mustDecimal(doc.TotalAmount),
		Status:           domain.OrderStatus(doc.Status),
		ConfirmedAt:      doc.ConfirmedAt,
		PreparedAt:       doc.PreparedAt,
		PickedUpAt:       doc.PickedUpAt,
		DeliveredAt:      doc.DeliveredAt,
		CancelledAt:      doc.CancelledAt,
		GrossRevenue:     mustDecimal(doc.GrossRevenue),
		CommissionAmount: mustDecimal(doc.CommissionAmount),
		PartnerPayout:    mustDecimal(doc.PartnerPayout),
		DeliveryCost:     mustDecimal(doc.DeliveryCost),
		TransactionFees:  mustDecimal(doc.TransactionFees),
		NetProfit:        mustDecimal(doc.NetProfit),
		ProfitMargin:     mustDecimal(doc.ProfitMargin),
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
		Version:          doc.Version,
	}

	if doc.DroneID != nil {
		if droneID, err := uuid.Parse(*doc.DroneID); err == nil {
			order.DroneID = &droneID
		}
	}
	if doc.OperatorID != nil {
		if operatorID, err := uuid.Parse(*doc.OperatorID); err == nil {
			order.OperatorID = &operatorID
		}
	}

	order.Items = make([]domain.OrderItem, len(doc.Items))
	for i, item := range doc.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, platformErrors.Wrap(err, "invalid product id in document")
		}
		order.Items[i] = domain.OrderItem{
			ProductID: productID,
			Name:      item.Name,
			UnitPrice: mustDecimal(item.UnitPrice),
			Quantity:  item.Quantity,
			LineTotal: mustDecimal(item.LineTotal),
		}
	}

	order.Timeline = make([]domain.TimelineEntry, len(doc.Timeline))
	for i, entry := range doc.Timeline {
		order.Timeline[i] = domain.TimelineEntry{
			Status:    domain.OrderStatus(entry.Status),
			Timestamp: entry.Timestamp,
			Note:      entry.Note,
		}
	}

	return order, nil
}

// mustDecimal parses a stored amount, treating empty as zero. Stored
// values are always produced by decimal.String, so a parse failure means
// document corruption and surfaces as zero plus the ledger checks that
// follow.
func mustDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

var _ interfaces.OrderRepository = (*OrderRepository)(nil)
