// Package handler exposes the domain services as a JSON HTTP API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/xenking/retail-crm/internal/domain/analytics"
	"github.com/xenking/retail-crm/internal/domain/member"
	"github.com/xenking/retail-crm/internal/domain/order"
	"github.com/xenking/retail-crm/internal/domain/paging"
	"github.com/xenking/retail-crm/internal/domain/product"
	"github.com/xenking/retail-crm/internal/domain/season"
)

// MemberService is implemented by *member.Service.
type MemberService interface {
	Register(ctx context.Context, req member.RegisterRequest) (*member.Member, error)
	Get(ctx context.Context, id int64) (*member.Member, error)
	List(ctx context.Context, page paging.Page) ([]member.Member, error)
	Delete(ctx context.Context, id int64) (*member.Member, error)
}

// OrderService is implemented by *order.Service.
type OrderService interface {
	Place(ctx context.Context, req order.PlaceRequest) (*order.Order, error)
	Get(ctx context.Context, id int64) (*order.Order, error)
	List(ctx context.Context, page paging.Page) ([]order.Order, error)
	ListByMember(ctx context.Context, memberID int64) ([]order.Order, error)
	Delete(ctx context.Context, id int64) (*order.Order, error)
	VerifyMonetary(ctx context.Context) ([]order.Drift, error)
}

// ProductService is implemented by *product.Service.
type ProductService interface {
	Create(ctx context.Context, p product.Product) (*product.Product, error)
	Get(ctx context.Context, id int64) (*product.Product, error)
	List(ctx context.Context, page paging.Page) ([]product.Product, error)
	Update(ctx context.Context, id int64, u product.Update) (*product.Product, error)
	CreateMaterial(ctx context.Context, name string) (*product.Material, error)
	ListMaterials(ctx context.Context) ([]product.Material, error)
	AddMaterial(ctx context.Context, productID, materialID int64) ([]product.Material, error)
	BillOfMaterials(ctx context.Context, productID int64) ([]product.Material, error)
	AttachToOrder(ctx context.Context, orderID, productID int64) ([]product.Product, error)
	ListByOrder(ctx context.Context, orderID int64) ([]product.Product, error)
}

// SeasonService is implemented by *season.Service.
type SeasonService interface {
	Record(ctx context.Context, s season.Sale) (*season.Sale, error)
	Update(ctx context.Context, s season.Sale) (*season.Sale, error)
	Get(ctx context.Context, year, s int) (*season.Sale, error)
	List(ctx context.Context) ([]season.Sale, error)
	ListByYear(ctx context.Context, year int) ([]season.Sale, error)
	ListBySeason(ctx context.Context, s int) ([]season.Sale, error)
	Delete(ctx context.Context, year, s int) (*season.Sale, error)
}

// AnalyticsService is implemented by *analytics.Service.
type AnalyticsService interface {
	RepurchaseRate(ctx context.Context, asOf time.Time) (analytics.RepurchaseResult, error)
	ActiveRates(ctx context.Context, asOf time.Time) ([]analytics.ActiveRate, error)
	RFMTopSegment(ctx context.Context, asOf time.Time) ([]member.Member, error)
}

// Services groups the domain services served by the Handler.
type Services struct {
	Members   MemberService
	Orders    OrderService
	Products  ProductService
	Seasons   SeasonService
	Analytics AnalyticsService
}

// Handler serves the /api routes.
type Handler struct {
	members   MemberService
	orders    OrderService
	products  ProductService
	seasons   SeasonService
	analytics AnalyticsService
	security  *Security
}

// NewHandler constructs a Handler. Mutating routes are guarded by security.
func NewHandler(svc Services, security *Security) *Handler {
	return &Handler{
		members:   svc.Members,
		orders:    svc.Orders,
		products:  svc.Products,
		seasons:   svc.Seasons,
		analytics: svc.Analytics,
		security:  security,
	}
}

// Register adds every API route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	auth := h.security.Require

	mux.HandleFunc("POST /api/member", auth(h.registerMember))
	mux.HandleFunc("GET /api/member", h.listMembers)
	mux.HandleFunc("GET /api/member/{id}", h.getMember)
	mux.HandleFunc("DELETE /api/member/{id}", auth(h.deleteMember))
	mux.HandleFunc("GET /api/member/{id}/orders", h.memberOrders)

	mux.HandleFunc("POST /api/order", auth(h.placeOrder))
	mux.HandleFunc("GET /api/order", h.listOrders)
	mux.HandleFunc("GET /api/order/{id}", h.getOrder)
	mux.HandleFunc("DELETE /api/order/{id}", auth(h.deleteOrder))
	mux.HandleFunc("POST /api/order/{id}/product", auth(h.attachProduct))
	mux.HandleFunc("GET /api/order/{id}/product", h.orderProducts)

	mux.HandleFunc("POST /api/product", auth(h.createProduct))
	mux.HandleFunc("GET /api/product", h.listProducts)
	mux.HandleFunc("GET /api/product/{id}", h.getProduct)
	mux.HandleFunc("PUT /api/product/{id}", auth(h.updateProduct))
	mux.HandleFunc("POST /api/product/{id}/material", auth(h.addMaterial))
	mux.HandleFunc("GET /api/product/{id}/material", h.productMaterials)
	mux.HandleFunc("POST /api/material", auth(h.createMaterial))
	mux.HandleFunc("GET /api/material", h.listMaterials)

	mux.HandleFunc("POST /api/ssale", auth(h.recordSale))
	mux.HandleFunc("GET /api/ssale", h.listSales)
	mux.HandleFunc("GET /api/ssale/{year}/{season}", h.getSale)
	mux.HandleFunc("PUT /api/ssale/{year}/{season}", auth(h.updateSale))
	mux.HandleFunc("DELETE /api/ssale/{year}/{season}", auth(h.deleteSale))
	mux.HandleFunc("GET /api/ssale/year/{year}", h.salesByYear)
	mux.HandleFunc("GET /api/ssale/season/{season}", h.salesBySeason)

	mux.HandleFunc("GET /api/repurchase-rate", h.repurchaseRate)
	mux.HandleFunc("GET /api/active-rate", h.activeRate)
	mux.HandleFunc("GET /api/rfm", h.rfm)
	mux.HandleFunc("POST /api/monetary/verify", auth(h.verifyMonetary))
}
