// Package model содержит доменные сущности аукционного маркетплейса.
package model

import "time"

// Role описывает роль пользователя в системе.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User представляет зарегистрированного пользователя.
// Баланс и комиссионный баланс хранятся в центах.
type User struct {
	ID                int64
	Login             string
	Email             string
	PasswordHash      []byte
	Role              Role
	Balance           int64
	CommissionBalance int64
	ShippingAddress   string
	CreatedAt         time.Time
}

// Balance содержит баланс пользователя для выдачи наружу.
type Balance struct {
	Current    float64 `json:"current"`
	Commission float64 `json:"commission"`
}

// Product описывает лот, выставленный продавцом на продажу.
// Продажа — одноразовый терминальный переход: после неё SoldTo и SoldPrice
// становятся неизменяемыми фактами.
type Product struct {
	ID          int64
	SellerID    int64
	Title       string
	Slug        string
	Description string
	Category    string
	Brand       string
	ModelNumber string
	Price       int64
	Commission  int64
	IsVerified  bool
	IsSoldOut   bool
	SoldTo      *int64
	SoldPrice   *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProductSummary — продукт со сведениями о торгах для списочных выдач.
type ProductSummary struct {
	Product
	BiddingPrice int64
	TotalBids    int64
}

// Bid представляет активную ставку пользователя на продукт.
// У пары (product, user) существует не более одной записи; повторная ставка
// обновляет цену на месте, сохраняя исходный created_at.
type Bid struct {
	ID        int64
	ProductID int64
	UserID    int64
	Price     int64
	CreatedAt time.Time
}

// CartItem — позиция корзины пользователя.
type CartItem struct {
	ID        int64
	UserID    int64
	ProductID int64
	Quantity  int32
	Product   Product
}

// OrderItem — снимок позиции заказа на момент оформления.
type OrderItem struct {
	ProductID int64
	Title     string
	Price     int64
	Quantity  int32
}

// Order — неизменяемый заказ, созданный при оформлении корзины.
type Order struct {
	ID        int64
	Number    string
	UserID    int64
	Total     int64
	Items     []OrderItem
	CreatedAt time.Time
}

// Category описывает категорию товаров.
type Category struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Review — отзыв пользователя о продукте.
type Review struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	UserID    int64     `json:"user_id"`
	Rating    int32     `json:"rating"`
	Comment   string    `json:"comment"`
	Edited    bool      `json:"edited"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationStatus описывает статус доставки уведомления.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// Notification — запись outbox для отправки письма получателю.
type Notification struct {
	ID        int64
	Key       string
	Recipient string
	Subject   string
	Body      string
	Status    NotificationStatus
	Attempts  int32
	CreatedAt time.Time
	SentAt    *time.Time
}

// Settlement — результат продажи продукта победителю торгов.
type Settlement struct {
	ProductID    int64
	ProductTitle string
	WinnerID     int64
	WinnerEmail  string
	BidPrice     int64
	Commission   int64
	FinalPrice   int64
}
