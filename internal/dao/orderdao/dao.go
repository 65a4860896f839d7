package orderdao

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	apperrors "github.com/orderbot/orderbot-sync/internal/errors"
	"github.com/orderbot/orderbot-sync/internal/squarespace"
	"github.com/rs/zerolog"
)

// TableName is the table holding one row per order line item
const TableName = "syc_orders"

// SQLSTATE undefined_table
const undefinedTable = "42P01"

var dialect = goqu.Dialect("postgres")

// TxBeginner is satisfied by *pgxpool.Pool and *pgx.Conn
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// InsertResult counts the outcome of storing one order
type InsertResult struct {
	Inserted     int
	Duplicates   int
	DuplicateIDs []string
}

// Add accumulates other into r
func (r *InsertResult) Add(other InsertResult) {
	r.Inserted += other.Inserted
	r.Duplicates += other.Duplicates
	r.DuplicateIDs = append(r.DuplicateIDs, other.DuplicateIDs...)
}

// DAO provides data access operations for order line items
type DAO struct {
	db TxBeginner
}

// New creates a new DAO instance
func New(db TxBeginner) *DAO {
	return &DAO{
		db: db,
	}
}

// InsertOrder stores every line item of order in a single transaction. Line items that already
// exist are skipped and reported as duplicates.
func (d *DAO) InsertOrder(ctx context.Context, order squarespace.Order) (InsertResult, error) {
	logger := zerolog.Ctx(ctx)

	var result InsertResult
	if len(order.LineItems) == 0 {
		return result, nil
	}

	tx, err := d.db.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("could not begin tx: %w", err)
	}
	defer func() {
		// no-op once committed
		_ = tx.Rollback(ctx)
	}()

	for _, item := range order.LineItems {
		query, args, err := InsertSQL(order, item)
		if err != nil {
			return InsertResult{}, err
		}

		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return InsertResult{}, execError(err, order, item)
		}

		if tag.RowsAffected() == 0 {
			logger.Info().
				Str("order_number", order.OrderNumber).
				Str("line_item_id", item.ID).
				Msg("caught duplicate line item, skipping")
			result.Duplicates++
			result.DuplicateIDs = append(result.DuplicateIDs, item.ID)
			continue
		}
		result.Inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		return InsertResult{}, fmt.Errorf("could not commit order %s: %w", order.OrderNumber, err)
	}

	return result, nil
}

// execError maps a missing syc_orders table to ErrSchemaMissing
func execError(err error, order squarespace.Order, item squarespace.LineItem) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return fmt.Errorf("%w: %s", apperrors.ErrSchemaMissing, pgErr.Message)
	}
	return fmt.Errorf("could not insert line item %s of order %s: %w", item.ID, order.OrderNumber, err)
}

// InsertSQL builds the parameterized insert for one line item
func InsertSQL(order squarespace.Order, item squarespace.LineItem) (string, []any, error) {
	query, args, err := dialect.Insert(TableName).
		Rows(Record(order, item)).
		OnConflict(goqu.DoNothing()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("could not build insert for line item %s: %w", item.ID, err)
	}
	return query, args, nil
}

// Record flattens an order and one of its line items into a syc_orders row
func Record(order squarespace.Order, item squarespace.LineItem) goqu.Record {
	billing := order.BillingAddress

	return goqu.Record{
		"id":                       item.ID,
		"order_number":             order.OrderNumber,
		"created_on":               order.CreatedOn,
		"modified_on":              order.ModifiedOn,
		"channel":                  order.Channel,
		"testmode":                 order.TestMode,
		"customer_email":           order.CustomerEmail,
		"billing_first_name":       billing.FirstName,
		"billing_last_name":        billing.LastName,
		"billing_address1":         billing.Address1,
		"billing_address2":         billing.Address2,
		"billing_city":             billing.City,
		"billing_state":            billing.State,
		"billing_country_code":     billing.CountryCode,
		"billing_postal_code":      billing.PostalCode,
		"billing_phone":            billing.Phone,
		"fulfillment_status":       order.FulfillmentStatus,
		"line_item_id":             item.ID,
		"variant_id":               item.VariantID,
		"variant_options":          jsonValue(item.VariantOptions),
		"sku":                      item.SKU,
		"product_id":               item.ProductID,
		"product_name":             item.ProductName,
		"quantity":                 item.Quantity,
		"unit_price_paid":          moneyValue(item.UnitPricePaid),
		"image_url":                item.ImageURL,
		"line_item_type":           item.LineItemType,
		"customizations":           jsonValue(item.Customizations),
		"subtotal":                 moneyValue(order.Subtotal),
		"shipping_total":           moneyValue(order.ShippingTotal),
		"discount_total":           moneyValue(order.DiscountTotal),
		"tax_total":                moneyValue(order.TaxTotal),
		"refunded_total":           moneyValue(order.RefundedTotal),
		"grand_total":              moneyValue(order.GrandTotal),
		"channel_name":             order.ChannelName,
		"external_order_reference": stringValue(order.ExternalOrderReference),
		"fulfilled_on":             timeValue(order),
		"price_tax_interpretation": order.PriceTaxInterpretation,
	}
}

func moneyValue(m squarespace.Money) any {
	if m.Value == "" {
		return nil
	}
	return m.Value
}

// jsonValue keeps absent fields NULL; an explicit JSON null is stored as the JSON value null.
func jsonValue(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func stringValue(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func timeValue(order squarespace.Order) any {
	if order.FulfilledOn == nil {
		return nil
	}
	return *order.FulfilledOn
}
