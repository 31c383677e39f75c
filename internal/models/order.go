package models

import "encoding/json"

// Customer is the shopper data posted with the checkout callback.
type Customer struct {
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	PhoneNumber string `json:"phoneNumber" binding:"required"`
	Address     string `json:"address" binding:"required"`
	City        string `json:"city" binding:"required"`
	Zip         string `json:"zip" binding:"required"`
}

type CartItem struct {
	ProductID   string `json:"productId" binding:"required"`
	ProductName string `json:"productName" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required,gt=0"`
}

type Order struct {
	TransactionID string
	Customer      Customer
	Items         []CartItem
}

// Missing returns the names of customer fields that are empty.
func (c Customer) Missing() []string {
	var missing []string
	fields := []struct {
		name  string
		value string
	}{
		{"name", c.Name},
		{"email", c.Email},
		{"phoneNumber", c.PhoneNumber},
		{"address", c.Address},
		{"city", c.City},
		{"zip", c.Zip},
	}
	for _, f := range fields {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

type CreatePaymentRequest struct {
	Price json.RawMessage `json:"price"`
}

// OrderCallbackRequest is what the storefront posts once the customer is
// redirected back after checkout.
type OrderCallbackRequest struct {
	FormData     Customer   `json:"formData" binding:"required"`
	CartProducts []CartItem `json:"cartProducts" binding:"required,min=1,dive"`
}

// GatewayNotification is the gateway's signed server-to-server callback.
type GatewayNotification struct {
	Response string `json:"response" binding:"required"`
}

// Record is the flat row written to the record store for one cart item.
type Record struct {
	TransactionID string `json:"TransactionId"`
	Name          string `json:"Name"`
	Email         string `json:"Email"`
	PhoneNumber   string `json:"PhoneNumber"`
	Address       string `json:"Address"`
	City          string `json:"City"`
	Zip           string `json:"Zip"`
	ProductID     string `json:"ProductId"`
	ProductName   string `json:"ProductName"`
	Quantity      int    `json:"Quantity"`
}

// Records flattens the order into one record per cart item, in cart order.
func (o Order) Records() []Record {
	records := make([]Record, 0, len(o.Items))
	for _, item := range o.Items {
		records = append(records, Record{
			TransactionID: o.TransactionID,
			Name:          o.Customer.Name,
			Email:         o.Customer.Email,
			PhoneNumber:   o.Customer.PhoneNumber,
			Address:       o.Customer.Address,
			City:          o.Customer.City,
			Zip:           o.Customer.Zip,
			ProductID:     item.ProductID,
			ProductName:   item.ProductName,
			Quantity:      item.Quantity,
		})
	}
	return records
}
