package handlers

import (
	"github.com/sakara-commerce/storefront/internal/checkout"
	"github.com/sakara-commerce/storefront/internal/domain"
	"github.com/sakara-commerce/storefront/internal/format"
)

type orderResponse struct {
	Order *orderView `json:"order"`
}

type orderView struct {
	ID              string         `json:"id"`
	Code            string         `json:"code"`
	State           string         `json:"state"`
	CurrencyCode    string         `json:"currencyCode"`
	Customer        *customerView  `json:"customer,omitempty"`
	Lines           []lineView     `json:"lines"`
	ShippingAddress *addressView   `json:"shippingAddress,omitempty"`
	BillingAddress  *addressView   `json:"billingAddress,omitempty"`
	CouponCodes     []string       `json:"couponCodes"`
	Discounts       []discountView `json:"discounts"`
	ShippingLines   []shippingView `json:"shippingLines"`
	Payments        []paymentView  `json:"payments"`
	Totals          totalsView     `json:"totals"`
	UpdatedAt       string         `json:"updatedAt,omitempty"`
}

type customerView struct {
	EmailAddress string `json:"emailAddress"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
}

type lineView struct {
	ID               string `json:"id"`
	ProductVariantID string `json:"productVariantId"`
	ProductName      string `json:"productName"`
	VariantName      string `json:"variantName,omitempty"`
	SKU              string `json:"sku,omitempty"`
	Quantity         int    `json:"quantity"`
	UnitPriceWithTax int64  `json:"unitPriceWithTax"`
	LinePriceWithTax int64  `json:"linePriceWithTax"`
	UnitPrice        string `json:"unitPriceDisplay"`
	LinePrice        string `json:"linePriceDisplay"`
}

type addressView struct {
	FullName      string `json:"fullName"`
	Company       string `json:"company,omitempty"`
	StreetLine1   string `json:"streetLine1"`
	StreetLine2   string `json:"streetLine2,omitempty"`
	City          string `json:"city,omitempty"`
	Province      string `json:"province,omitempty"`
	PostalCode    string `json:"postalCode,omitempty"`
	CountryCode   string `json:"countryCode"`
	PhoneNumber   string `json:"phoneNumber,omitempty"`
	DestinationID string `json:"destinationId,omitempty"`
}

type discountView struct {
	Description   string `json:"description"`
	CouponCode    string `json:"couponCode,omitempty"`
	AmountWithTax int64  `json:"amountWithTax"`
	Amount        string `json:"amountDisplay"`
}

type shippingView struct {
	MethodID     string `json:"methodId"`
	MethodName   string `json:"methodName"`
	PriceWithTax int64  `json:"priceWithTax"`
	Price        string `json:"priceDisplay"`
}

type paymentView struct {
	ID            string         `json:"id"`
	State         string         `json:"state"`
	Method        string         `json:"method"`
	TransactionID string         `json:"transactionId,omitempty"`
	Amount        int64          `json:"amount"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     string         `json:"createdAt,omitempty"`
}

type totalsView struct {
	SubTotalWithTax int64  `json:"subTotalWithTax"`
	ShippingWithTax int64  `json:"shippingWithTax"`
	TotalWithTax    int64  `json:"totalWithTax"`
	SubTotal        string `json:"subTotalDisplay"`
	Shipping        string `json:"shippingDisplay"`
	Total           string `json:"totalDisplay"`
}

type stepView struct {
	Step   string `json:"step"`
	Status string `json:"status"`
}

func buildOrderView(order *domain.Order) *orderView {
	if order == nil {
		return nil
	}
	cur := order.CurrencyCode
	view := &orderView{
		ID:           order.ID,
		Code:         order.Code,
		State:        string(order.State),
		CurrencyCode: cur,
		CouponCodes:  order.CouponCodes,
		Lines:        make([]lineView, 0, len(order.Lines)),
		Discounts:    make([]discountView, 0, len(order.Discounts)),
		ShippingLines: make([]shippingView, 0,
			len(order.ShippingLines)),
		Payments:  make([]paymentView, 0, len(order.Payments)),
		UpdatedAt: formatTime(order.UpdatedAt),
		Totals: totalsView{
			SubTotalWithTax: order.Totals.SubTotalWithTax,
			ShippingWithTax: order.Totals.ShippingWithTax,
			TotalWithTax:    order.Totals.TotalWithTax,
			SubTotal:        format.Money(order.Totals.SubTotalWithTax, cur),
			Shipping:        format.Money(order.Totals.ShippingWithTax, cur),
			Total:           format.Money(order.Totals.TotalWithTax, cur),
		},
	}
	if order.Customer != nil {
		view.Customer = &customerView{
			EmailAddress: order.Customer.EmailAddress,
			FirstName:    order.Customer.FirstName,
			LastName:     order.Customer.LastName,
		}
	}
	for _, l := range order.Lines {
		view.Lines = append(view.Lines, lineView{
			ID:               l.ID,
			ProductVariantID: l.ProductVariantID,
			ProductName:      l.ProductName,
			VariantName:      l.VariantName,
			SKU:              l.SKU,
			Quantity:         l.Quantity,
			UnitPriceWithTax: l.UnitPriceWithTax,
			LinePriceWithTax: l.LinePriceWithTax,
			UnitPrice:        format.Money(l.UnitPriceWithTax, cur),
			LinePrice:        format.Money(l.LinePriceWithTax, cur),
		})
	}
	view.ShippingAddress = buildAddressView(order.ShippingAddress)
	view.BillingAddress = buildAddressView(order.BillingAddress)
	for _, d := range order.Discounts {
		view.Discounts = append(view.Discounts, discountView{
			Description:   d.Description,
			CouponCode:    d.CouponCode,
			AmountWithTax: d.AmountWithTax,
			Amount:        format.Money(d.AmountWithTax, cur),
		})
	}
	for _, s := range order.ShippingLines {
		view.ShippingLines = append(view.ShippingLines, shippingView{
			MethodID:     s.MethodID,
			MethodName:   s.MethodName,
			PriceWithTax: s.PriceWithTax,
			Price:        format.Money(s.PriceWithTax, cur),
		})
	}
	for _, p := range order.Payments {
		view.Payments = append(view.Payments, paymentView{
			ID:            p.ID,
			State:         string(p.State),
			Method:        p.Method,
			TransactionID: p.TransactionID,
			Amount:        p.Amount,
			Metadata:      p.Metadata,
			CreatedAt:     formatTime(p.CreatedAt),
		})
	}
	return view
}

func buildAddressView(addr *domain.Address) *addressView {
	if addr == nil {
		return nil
	}
	return &addressView{
		FullName:      addr.FullName,
		Company:       addr.Company,
		StreetLine1:   addr.StreetLine1,
		StreetLine2:   addr.StreetLine2,
		City:          addr.City,
		Province:      addr.Province,
		PostalCode:    addr.PostalCode,
		CountryCode:   addr.CountryCode,
		PhoneNumber:   addr.PhoneNumber,
		DestinationID: addr.DestinationID,
	}
}

func buildStepViews(machine *checkout.StepMachine) []stepView {
	if machine == nil {
		return nil
	}
	steps := checkout.Steps()
	views := make([]stepView, 0, len(steps))
	for _, s := range steps {
		views = append(views, stepView{Step: string(s), Status: string(machine.Status(s))})
	}
	return views
}
