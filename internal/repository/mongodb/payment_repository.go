package mongodb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sanketyelugotla/zlift-ledger/internal/domain"
	platformErrors "github.com/sanketyelugotla/zlift-ledger/internal/platform/errors"
	"github.com/sanketyelugotla/zlift-ledger/internal/repository/interfaces"
)

const paymentsCollection = "payments"

// PaymentRepository implements interfaces.PaymentRepository using MongoDB
type PaymentRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
}

// NewPaymentRepository creates a MongoDB payment repository and ensures
// its indexes exist
func NewPaymentRepository(db *mongo.Database, queryTimeout time.Duration) (*PaymentRepository, error) {
	repo := &PaymentRepository{
		collection: db.Collection(paymentsCollection),
		timeout:    queryTimeout,
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	_, err := repo.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "order_id", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "gateway_transaction_id", Value: 1}},
			Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "settlement_status", Value: 1}}},
	})
	if err != nil {
		return nil, platformErrors.Wrap(err, "failed to create payment indexes")
	}

	return repo, nil
}

type paymentDoc struct {
	ID         string `bson:"_id"`
	OrderID    string `bson:"order_id"`
	CustomerID string `bson:"customer_id"`

	Amount   string `bson:"amount"`
	Currency string `bson:"currency"`
	Method   string `bson:"method"`

	Status               string `bson:"status"`
	GatewayTransactionID string `bson:"gateway_transaction_id,omitempty"`
	GatewayResponse      string `bson:"gateway_response,omitempty"`

	SettlementStatus string     `bson:"settlement_status"`
	SettlementAmount string     `bson:"settlement_amount"`
	SettlementDate   *time.Time `bson:"settlement_date,omitempty"`
	TransactionFees  string     `bson:"transaction_fees"`

	RefundAmount string     `bson:"refund_amount"`
	RefundReason string     `bson:"refund_reason,omitempty"`
	RefundedAt   *time.Time `bson:"refunded_at,omitempty"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
	Version   int       `bson:"version"`
}

// Create inserts a new payment
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, paymentToDocument(payment)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return platformErrors.NewConflict("payment already exists")
		}
		return platformErrors.Wrap(err, "failed to insert payment")
	}
	return nil
}

// GetByID retrieves a payment by its ID
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var doc paymentDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, platformErrors.NewNotFound("payment not found")
		}
		return nil, platformErrors.Wrap(err, "failed to get payment")
	}
	return documentToPayment(&doc)
}

// GetByIDs retrieves payments by id set. Unknown ids are simply absent
// from the result; settlement treats them as skipped.
func (r *PaymentRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	idStrings := make([]string, len(ids))
	for i, id := range ids {
		idStrings[i] = id.String()
	}
	query := bson.M{"_id": bson.M{"$in": idStrings}}
	return r.findPayments(ctx, query, options.Find())
}

// GetByOrderID retrieves payments linked to an order
func (r *PaymentRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]*domain.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := bson.M{"order_id": orderID.String()}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return r.findPayments(ctx, query, opts)
}

// GetByGatewayTransactionID retrieves the payment matching an external
// gateway transaction id
func (r *PaymentRepository) GetByGatewayTransactionID(ctx context.Context, txnID string) (*domain.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var doc paymentDoc
	err := r.collection.FindOne(ctx, bson.M{"gateway_transaction_id": txnID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, platformErrors.NewNotFound("payment not found for gateway transaction")
		}
		return nil, platformErrors.Wrap(err, "failed to get payment by gateway transaction")
	}
	return documentToPayment(&doc)
}

// Update writes the payment back with an optimistic version check
func (r *PaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	loadedVersion := payment.Version
	payment.Version = loadedVersion + 1

	result, err := r.collection.ReplaceOne(ctx,
		bson.M{"_id": payment.ID.String(), "version": loadedVersion},
		paymentToDocument(payment),
	)
	if err != nil {
		payment.Version = loadedVersion
		return platformErrors.Wrap(err, "failed to update payment")
	}
	if result.MatchedCount == 0 {
		payment.Version = loadedVersion
		return platformErrors.NewConflict("payment was modified concurrently")
	}
	return nil
}

// FindCreatedBetween returns payments created in [from, to)
func (r *PaymentRepository) FindCreatedBetween(ctx context.Context, from, to time.Time) ([]*domain.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := bson.M{"created_at": bson.M{"$gte": from, "$lt": to}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return r.findPayments(ctx, query, opts)
}

func (r *PaymentRepository) findPayments(ctx context.Context, query bson.M, opts *options.FindOptions) ([]*domain.Payment, error) {
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, platformErrors.Wrap(err, "failed to query payments")
	}
	defer cursor.Close(ctx)

	var payments []*domain.Payment
	for cursor.Next(ctx) {
		var doc paymentDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, platformErrors.Wrap(err, "failed to decode payment document")
		}
		payment, err := documentToPayment(&doc)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	if err := cursor.Err(); err != nil {
		return nil, platformErrors.Wrap(err, "payment cursor error")
	}
	return payments, nil
}

func paymentToDocument(p *domain.Payment) *paymentDoc {
	return &paymentDoc{
		ID:                   p.ID.String(),
		OrderID:              p.OrderID.String(),
		CustomerID:           p.CustomerID.String(),
		Amount:               p.Amount.String(),
		Currency:             p.Currency,
		Method:               p.Method,
		Status:               string(p.Status),
		GatewayTransactionID: p.GatewayTransactionID,
		GatewayResponse:      p.GatewayResponse,
		SettlementStatus:     string(p.SettlementStatus),
		SettlementAmount:     p.SettlementAmount.String(),
		SettlementDate:       p.SettlementDate,
		TransactionFees:      p.TransactionFees.String(),
		RefundAmount:         p.RefundAmount.String(),
		RefundReason:         p.RefundReason,
		RefundedAt:           p.RefundedAt,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
		Version:              p.Version,
	}
}

func documentToPayment(doc *paymentDoc) (*domain.Payment, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, platformErrors.Wrap(err, "invalid payment id in document")
	}
	orderID, err := uuid.Parse(doc.OrderID)
	if err != nil {
		return nil, platformErrors.Wrap(err, "invalid order id in payment document")
	}
	customerID, err := uuid.Parse(doc.CustomerID)
	if err != nil {
		return nil, platformErrors.Wrap(err, "invalid customer id in payment document")
	}

	return &domain.Payment{
		ID:                   id,
		OrderID:              orderID,
		CustomerID:           customerID,
		Amount:               mustDecimal(doc.Amount),
		Currency:             doc.Currency,
		Method:               doc.Method,
		Status:               domain.PaymentStatus(doc.Status),
		GatewayTransactionID: doc.GatewayTransactionID,
		GatewayResponse:      doc.GatewayResponse,
		SettlementStatus:     domain.SettlementStatus(doc.SettlementStatus),
		SettlementAmount:     mustDecimal(doc.SettlementAmount),
		SettlementDate:       doc.SettlementDate,
		TransactionFees:      mustDecimal(doc.TransactionFees),
		RefundAmount:         mustDecimal(doc.RefundAmount),
		RefundReason:         doc.RefundReason,
		RefundedAt:           doc.RefundedAt,
		CreatedAt:            doc.CreatedAt,
		UpdatedAt:            doc.UpdatedAt,
		Version:              doc.Version,
	}, nil
}

var _ interfaces.PaymentRepository = (*PaymentRepository)(nil)
