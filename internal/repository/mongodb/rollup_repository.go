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

const rollupsCollection = "daily_rollups"

// RollupRepository implements interfaces.RollupRepository using MongoDB.
// A unique index on date backs the one-rollup-per-date invariant at the
// storage level, in addition to the service-level existence check.
type RollupRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
}

// NewRollupRepository creates a MongoDB rollup repository and ensures the
// unique date index exists
func NewRollupRepository(db *mongo.Database, queryTimeout time.Duration) (*RollupRepository, error) {
	repo := &RollupRepository{
		collection: db.Collection(rollupsCollection),
		timeout:    queryTimeout,
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	_, err := repo.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, platformErrors.Wrap(err, "failed to create rollup index")
	}

	return repo, nil
}

type rollupDoc struct {
	ID   string    `bson:"_id"`
	Date time.Time `bson:"date"`

	Sales       salesSummaryDoc      `bson:"sales"`
	Partners    []partnerSalesDoc    `bson:"partners"`
	TopPartners []partnerSalesDoc    `bson:"top_partners"`
	TopProducts []productSalesDoc    `bson:"top_products"`
	Payments    paymentBreakdownDoc  `bson:"payments"`
	Operational operationalMetricsDoc `bson:"operational"`

	CreatedAt time.Time `bson:"created_at"`
}

type salesSummaryDoc struct {
	TotalOrders       int    `bson:"total_orders"`
	TotalRevenue      string `bson:"total_revenue"`
	TotalProfit       string `bson:"total_profit"`
	AverageOrderValue string `bson:"average_order_value"`
	ProfitMargin      string `bson:"profit_margin"`
}

type partnerSalesDoc struct {
	PartnerID  string `bson:"partner_id"`
	Orders     int    `bson:"orders"`
	Revenue    string `bson:"revenue"`
	Commission string `bson:"commission"`
	Payout     string `bson:"payout"`
}

type productSalesDoc struct {
	ProductID string `bson:"product_id"`
	Name      string `bson:"name"`
	Quantity  int    `bson:"quantity"`
	Revenue   string `bson:"revenue"`
}

type paymentBreakdownDoc struct {
	ByStatus map[string]int `bson:"by_status"`
	ByMethod map[string]int `bson:"by_method"`
}

type operationalMetricsDoc struct {
	AvgDeliveryMinutes float64 `bson:"avg_delivery_minutes"`
	Delivered          int     `bson:"delivered"`
	Cancelled          int     `bson:"cancelled"`
	Failed             int     `bson:"failed"`
}

// Insert stores a new rollup. A duplicate date maps to
// domain.ErrRollupExists.
func (r *RollupRepository) Insert(ctx context.Context, rollup *domain.DailyRollup) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, rollupToDocument(rollup)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrRollupExists
		}
		return platformErrors.Wrap(err, "failed to insert rollup")
	}
	return nil
}

// GetByDate retrieves the rollup for a reporting date
func (r *RollupRepository) GetByDate(ctx context.Context, date time.Time) (*domain.DailyRollup, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var doc rollupDoc
	err := r.collection.FindOne(ctx, bson.M{"date": date}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, platformErrors.NewNotFound("no rollup for date")
		}
		return nil, platformErrors.Wrap(err, "failed to get rollup")
	}
	return documentToRollup(&doc)
}

// DeleteByDate removes the rollup for a date, allowing regeneration
func (r *RollupRepository) DeleteByDate(ctx context.Context, date time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"date": date})
	if err != nil {
		return platformErrors.Wrap(err, "failed to delete rollup")
	}
	if result.DeletedCount == 0 {
		return platformErrors.NewNotFound("no rollup for date")
	}
	return nil
}

func rollupToDocument(rollup *domain.DailyRollup) *rollupDoc {
	doc := &rollupDoc{
		ID:   rollup.ID.String(),
		Date: rollup.Date,
		Sales: salesSummaryDoc{
			TotalOrders:       rollup.Sales.TotalOrders,
			TotalRevenue:      rollup.Sales.TotalRevenue.String(),
			TotalProfit:       rollup.Sales.TotalProfit.String(),
			AverageOrderValue: rollup.Sales.AverageOrderValue.String(),
			ProfitMargin:      rollup.Sales.ProfitMargin.String(),
		},
		Payments: paymentBreakdownDoc{
			ByStatus: rollup.Payments.ByStatus,
			ByMethod: rollup.Payments.ByMethod,
		},
		Operational: operationalMetricsDoc{
			AvgDeliveryMinutes: rollup.Operational.AvgDeliveryMinutes,
			Delivered:          rollup.Operational.Delivered,
			Cancelled:          rollup.Operational.Cancelled,
			Failed:             rollup.Operational.Failed,
		},
		CreatedAt: rollup.CreatedAt,
	}

	doc.Partners = partnerSalesToDocuments(rollup.Partners)
	doc.TopPartners = partnerSalesToDocuments(rollup.TopPartners)

	doc.TopProducts = make([]productSalesDoc, len(rollup.TopProducts))
	for i, product := range rollup.TopProducts {
		doc.TopProducts[i] = productSalesDoc{
			ProductID: product.ProductID.String(),
			Name:      product.Name,
			Quantity:  product.Quantity,
			Revenue:   product.Revenue.String(),
		}
	}

	return doc
}

func partnerSalesToDocuments(partners []domain.PartnerSales) []partnerSalesDoc {
	docs := make([]partnerSalesDoc, len(partners))
	for i, partner := range partners {
		docs[i] = partnerSalesDoc{
			PartnerID:  partner.PartnerID.String(),
			Orders:     partner.Orders,
			Revenue:    partner.Revenue.String(),
			Commission: partner.Commission.String(),
			Payout:     partner.Payout.String(),
		}
	}
	return docs
}

func documentToRollup(doc *rollupDoc) (*domain.DailyRollup, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, platformErrors.Wrap(err, "invalid rollup id in document")
	}

	rollup := &domain.DailyRollup{
		ID:   id,
		Date: doc.Date,
		Sales: domain.SalesSummary{
			TotalOrders:       doc.Sales.TotalOrders,
			TotalRevenue:      mustDecimal(doc.Sales.TotalRevenue),
			TotalProfit:       mustDecimal(doc.Sales.TotalProfit),
			AverageOrderValue: mustDecimal(doc.Sales.AverageOrderValue),
			ProfitMargin:      mustDecimal(doc.Sales.ProfitMargin),
		},
		Payments: domain.PaymentBreakdown{
			ByStatus: doc.Payments.ByStatus,
			ByMethod: doc.Payments.ByMethod,
		},
		Operational: domain.OperationalMetrics{
			AvgDeliveryMinutes: doc.Operational.AvgDeliveryMinutes,
			Delivered:          doc.Operational.Delivered,
			Cancelled:          doc.Operational.Cancelled,
			Failed:             doc.Operational.Failed,
		},
		CreatedAt: doc.CreatedAt,
	}

	rollup.Partners, err = documentsToPartnerSales(doc.Partners)
	if err != nil {
		return nil, err
	}
	rollup.TopPartners, err = documentsToPartnerSales(doc.TopPartners)
	if err != nil {
		return nil, err
	}

	rollup.TopProducts = make([]domain.ProductSales, len(doc.TopProducts))
	for i, product := range doc.TopProducts {
		productID, err := uuid.Parse(product.ProductID)
		if err != nil {
			return nil, platformErrors.Wrap(err, "invalid product id in rollup document")
		}
		rollup.TopProducts[i] = domain.ProductSales{
			ProductID: productID,
			Name:      product.Name,
			Quantity:  product.Quantity,
			Revenue:   mustDecimal(product.Revenue),
		}
	}

	return rollup, nil
}

func documentsToPartnerSales(docs []partnerSalesDoc) ([]domain.PartnerSales, error) {
	partners := make([]domain.PartnerSales, len(docs))
	for i, doc := range docs {
		partnerID, err := uuid.Parse(doc.PartnerID)
		if err != nil {
			return nil, platformErrors.Wrap(err, "invalid partner id in rollup document")
		}
		partners[i] = domain.PartnerSales{
			PartnerID:  partnerID,
			Orders:     doc.Orders,
			Revenue:    mustDecimal(doc.Revenue),
			Commission: mustDecimal(doc.Commission),
			Payout:     mustDecimal(doc.Payout),
		}
	}
	return partners, nil
}

var _ interfaces.RollupRepository = (*RollupRepository)(nil)
