package gateway

import (
	"strings"
	"time"

	"github.com/sakara-commerce/storefront/internal/domain"
)

// Wire payloads mirror the commerce API response shapes. Mapping to domain
// types happens at this boundary only.

type customerPayload struct {
	ID           string `json:"id"`
	EmailAddress string `json:"emailAddress"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
}

type addressPayload struct {
	FullName     string         `json:"fullName"`
	Company      string         `json:"company"`
	StreetLine1  string         `json:"streetLine1"`
	StreetLine2  string         `json:"streetLine2"`
	City         string         `json:"city"`
	Province     string         `json:"province"`
	PostalCode   string         `json:"postalCode"`
	CountryCode  string         `json:"countryCode"`
	PhoneNumber  string         `json:"phoneNumber"`
	CustomFields map[string]any `json:"customFields"`
}

type orderLinePayload struct {
	ID                       string `json:"id"`
	Quantity                 int    `json:"quantity"`
	UnitPriceWithTax         int64  `json:"unitPriceWithTax"`
	LinePriceWithTax         int64  `json:"linePriceWithTax"`
	ProratedUnitPriceWithTax int64  `json:"proratedUnitPriceWithTax"`
	ProductVariant           struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		SKU  string `json:"sku"`
		Product struct {
			Name string `json:"name"`
		} `json:"product"`
	} `json:"productVariant"`
}

type discountPayload struct {
	Description      string `json:"description"`
	AmountWithTax    int64  `json:"amountWithTax"`
	AdjustmentSource string `json:"adjustmentSource"`
}

type shippingLinePayload struct {
	PriceWithTax   int64 `json:"priceWithTax"`
	ShippingMethod struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"shippingMethod"`
}

type paymentPayload struct {
	ID            string         `json:"id"`
	State         string         `json:"state"`
	Method        string         `json:"method"`
	TransactionID string         `json:"transactionId"`
	Amount        int64          `json:"amount"`
	Metadata      map[string]any `json:"metadata"`
	CreatedAt     string         `json:"createdAt"`
}

type orderPayload struct {
	ID              string                `json:"id"`
	Code            string                `json:"code"`
	State           string                `json:"state"`
	Active          bool                  `json:"active"`
	CurrencyCode    string                `json:"currencyCode"`
	Customer        *customerPayload      `json:"customer"`
	Lines           []orderLinePayload    `json:"lines"`
	ShippingAddress *addressPayload       `json:"shippingAddress"`
	BillingAddress  *addressPayload       `json:"billingAddress"`
	CouponCodes     []string              `json:"couponCodes"`
	Discounts       []discountPayload     `json:"discounts"`
	ShippingLines   []shippingLinePayload `json:"shippingLines"`
	Payments        []paymentPayload      `json:"payments"`
	SubTotal        int64                 `json:"subTotal"`
	SubTotalWithTax int64                 `json:"subTotalWithTax"`
	Shipping        int64                 `json:"shipping"`
	ShippingWithTax int64                 `json:"shippingWithTax"`
	Total           int64                 `json:"total"`
	TotalWithTax    int64                 `json:"totalWithTax"`
	UpdatedAt       string                `json:"updatedAt"`
}

func (p orderPayload) toDomain() *domain.Order {
	order := &domain.Order{
		ID:           strings.TrimSpace(p.ID),
		Code:         strings.TrimSpace(p.Code),
		State:        domain.OrderState(strings.TrimSpace(p.State)),
		Active:       p.Active,
		CurrencyCode: strings.ToUpper(strings.TrimSpace(p.CurrencyCode)),
		CouponCodes:  append([]string(nil), p.CouponCodes...),
		Totals: domain.OrderTotals{
			SubTotal:        p.SubTotal,
			SubTotalWithTax: p.SubTotalWithTax,
			Shipping:        p.Shipping,
			ShippingWithTax: p.ShippingWithTax,
			Total:           p.Total,
			TotalWithTax:    p.TotalWithTax,
		},
		UpdatedAt: parseTime(p.UpdatedAt),
	}
	if p.Customer != nil {
		order.Customer = &domain.Customer{
			ID:           p.Customer.ID,
			EmailAddress: strings.TrimSpace(p.Customer.EmailAddress),
			FirstName:    strings.TrimSpace(p.Customer.FirstName),
			LastName:     strings.TrimSpace(p.Customer.LastName),
		}
	}
	if p.ShippingAddress != nil {
		order.ShippingAddress = p.ShippingAddress.toDomain()
	}
	if p.BillingAddress != nil {
		order.BillingAddress = p.BillingAddress.toDomain()
	}
	for _, line := range p.Lines {
		order.Lines = append(order.Lines, domain.OrderLine{
			ID:                       line.ID,
			ProductVariantID:         line.ProductVariant.ID,
			ProductName:              line.ProductVariant.Product.Name,
			VariantName:              line.ProductVariant.Name,
			SKU:                      line.ProductVariant.SKU,
			Quantity:                 line.Quantity,
			UnitPriceWithTax:         line.UnitPriceWithTax,
			LinePriceWithTax:         line.LinePriceWithTax,
			ProratedUnitPriceWithTax: line.ProratedUnitPriceWithTax,
		})
	}
	for _, d := range p.Discounts {
		order.Discounts = append(order.Discounts, domain.Discount{
			Description:   d.Description,
			CouponCode:    couponCodeFromSource(d.AdjustmentSource, p.CouponCodes),
			AmountWithTax: d.AmountWithTax,
		})
	}
	for _, sl := range p.ShippingLines {
		order.ShippingLines = append(order.ShippingLines, domain.ShippingLine{
			MethodID:     sl.ShippingMethod.ID,
			MethodName:   sl.ShippingMethod.Name,
			PriceWithTax: sl.PriceWithTax,
		})
	}
	for _, pay := range p.Payments {
		order.Payments = append(order.Payments, domain.Payment{
			ID:            pay.ID,
			State:         domain.PaymentState(strings.TrimSpace(pay.State)),
			Method:        pay.Method,
			TransactionID: pay.TransactionID,
			Amount:        pay.Amount,
			Metadata:      pay.Metadata,
			CreatedAt:     parseTime(pay.CreatedAt),
		})
	}
	return order
}

func (p *addressPayload) toDomain() *domain.Address {
	addr := &domain.Address{
		FullName:    strings.TrimSpace(p.FullName),
		Company:     strings.TrimSpace(p.Company),
		StreetLine1: strings.TrimSpace(p.StreetLine1),
		StreetLine2: strings.TrimSpace(p.StreetLine2),
		City:        strings.TrimSpace(p.City),
		Province:    strings.TrimSpace(p.Province),
		PostalCode:  strings.TrimSpace(p.PostalCode),
		CountryCode: strings.ToUpper(strings.TrimSpace(p.CountryCode)),
		PhoneNumber: strings.TrimSpace(p.PhoneNumber),
	}
	if p.CustomFields != nil {
		if dest, ok := p.CustomFields["destinationId"].(string); ok {
			addr.DestinationID = strings.TrimSpace(dest)
		}
	}
	return addr
}

// couponCodeFromSource attributes a discount to a coupon code when the
// adjustment source references a promotion tied to one of the order's codes.
func couponCodeFromSource(source string, codes []string) string {
	source = strings.ToLower(strings.TrimSpace(source))
	if source == "" {
		return ""
	}
	for _, code := range codes {
		if strings.Contains(source, strings.ToLower(strings.TrimSpace(code))) {
			return code
		}
	}
	return ""
}

type shippingMethodPayload struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	PriceWithTax int64  `json:"priceWithTax"`
}

func (p shippingMethodPayload) toDomain() domain.ShippingMethod {
	return domain.ShippingMethod{
		ID:           p.ID,
		Name:         strings.TrimSpace(p.Name),
		Description:  strings.TrimSpace(p.Description),
		PriceWithTax: p.PriceWithTax,
	}
}

type paymentMethodPayload struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsEligible  bool   `json:"isEligible"`
}

type destinationPayload struct {
	ID          string `json:"id"`
	Subdistrict string `json:"subdistrict"`
	District    string `json:"district"`
	City        string `json:"city"`
	Province    string `json:"province"`
	PostalCode  string `json:"postalCode"`
}

func (p destinationPayload) toDomain() domain.Destination {
	return domain.Destination{
		ID:          strings.TrimSpace(p.ID),
		Subdistrict: strings.TrimSpace(p.Subdistrict),
		District:    strings.TrimSpace(p.District),
		City:        strings.TrimSpace(p.City),
		Province:    strings.TrimSpace(p.Province),
		PostalCode:  strings.TrimSpace(p.PostalCode),
	}
}

type countryPayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// AddressInput is the wire shape for set-address mutations. Addresses are
// written wholesale; there is no partial-field mutation.
type AddressInput struct {
	FullName     string         `json:"fullName,omitempty"`
	Company      string         `json:"company,omitempty"`
	StreetLine1  string         `json:"streetLine1"`
	StreetLine2  string         `json:"streetLine2,omitempty"`
	City         string         `json:"city,omitempty"`
	Province     string         `json:"province,omitempty"`
	PostalCode   string         `json:"postalCode,omitempty"`
	CountryCode  string         `json:"countryCode"`
	PhoneNumber  string         `json:"phoneNumber,omitempty"`
	CustomFields map[string]any `json:"customFields,omitempty"`
}

// AddressInputFromDomain converts a domain address into its wire shape,
// carrying the destination id through the custom-field extension.
func AddressInputFromDomain(addr domain.Address) AddressInput {
	input := AddressInput{
		FullName:    addr.FullName,
		Company:     addr.Company,
		StreetLine1: addr.StreetLine1,
		StreetLine2: addr.StreetLine2,
		City:        addr.City,
		Province:    addr.Province,
		PostalCode:  addr.PostalCode,
		CountryCode: addr.CountryCode,
		PhoneNumber: addr.PhoneNumber,
	}
	if strings.TrimSpace(addr.DestinationID) != "" {
		input.CustomFields = map[string]any{"destinationId": addr.DestinationID}
	}
	return input
}

func parseTime(val string) time.Time {
	val = strings.TrimSpace(val)
	if val == "" {
		return time.Time{}
	}
	layouts := []string{time.RFC3339Nano, time.RFC3339}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, val); err == nil {
			return ts
		}
	}
	return time.Time{}
}
