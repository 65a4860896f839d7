package squarespace

import (
	"encoding/json"
	"time"
)

// Money is an amount as returned by the commerce API, e.g. {"value":"12.00","currency":"USD"}
type Money struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type Address struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2"`
	City        string `json:"city"`
	State       string `json:"state"`
	CountryCode string `json:"countryCode"`
	PostalCode  string `json:"postalCode"`
	Phone       string `json:"phone"`
}

type LineItem struct {
	ID             string          `json:"id"`
	VariantID      string          `json:"variantId"`
	VariantOptions json.RawMessage `json:"variantOptions,omitempty"`
	SKU            string          `json:"sku"`
	ProductID      string          `json:"productId"`
	ProductName    string          `json:"productName"`
	Quantity       int             `json:"quantity"`
	UnitPricePaid  Money           `json:"unitPricePaid"`
	ImageURL       string          `json:"imageUrl"`
	LineItemType   string          `json:"lineItemType"`
	Customizations json.RawMessage `json:"customizations"`
}

type Order struct {
	ID                     string     `json:"id"`
	OrderNumber            string     `json:"orderNumber"`
	CreatedOn              time.Time  `json:"createdOn"`
	ModifiedOn             time.Time  `json:"modifiedOn"`
	Channel                string     `json:"channel"`
	TestMode               bool       `json:"testmode"`
	CustomerEmail          string     `json:"customerEmail"`
	BillingAddress         Address    `json:"billingAddress"`
	FulfillmentStatus      string     `json:"fulfillmentStatus"`
	LineItems              []LineItem `json:"lineItems"`
	Subtotal               Money      `json:"subtotal"`
	ShippingTotal          Money      `json:"shippingTotal"`
	DiscountTotal          Money      `json:"discountTotal"`
	TaxTotal               Money      `json:"taxTotal"`
	RefundedTotal          Money      `json:"refundedTotal"`
	GrandTotal             Money      `json:"grandTotal"`
	ChannelName            string     `json:"channelName"`
	ExternalOrderReference *string    `json:"externalOrderReference"`
	FulfilledOn            *time.Time `json:"fulfilledOn"`
	PriceTaxInterpretation string     `json:"priceTaxInterpretation"`
}

type Pagination struct {
	HasNextPage bool   `json:"hasNextPage"`
	NextPageURL string `json:"nextPageUrl"`
}

type ordersPage struct {
	Result     []Order    `json:"result"`
	Pagination Pagination `json:"pagination"`
}
