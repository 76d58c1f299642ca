package orders

import "time"

type Customer struct {
	ID        int64
	Phone     string
	Name      string
	Email     string
	Role      string
	State     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Product struct {
	ID          int64
	Name        string
	Description string
	PriceCents  int64
	Currency    string
	Category    string
	ImageURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Order struct {
	ID              int64
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	DeliveryAddress string
	DeliveryPhone   string
	Status          Status
	TotalCents      int64
	Currency        string
	TxRef           string
	OrderDate       time.Time
}

type OrderItem struct {
	ID         int64
	OrderID    int64
	ProductID  int64
	Name       string // joined from products for display
	Quantity   int
	PriceCents int64 // snapshot at order time
	Note       string
}

type Transaction struct {
	ID              int64
	OrderID         int64
	TxRef           string
	TransactionDate time.Time
	PaymentMethod   string
	PaymentStatus   string
	AmountCents     int64
	Currency        string
	PaymentProvider string
}

type Review struct {
	ID          int64
	OrderID     int64
	PhoneNumber string
	Rating      int
	Comment     string
	CreatedAt   time.Time
}

type Address struct {
	ID          int64
	CustomerID  int64
	Address     string
	PhoneNumber string
}
