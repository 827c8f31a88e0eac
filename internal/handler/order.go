package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/retail-crm/internal/domain/order"
)

func encodeOrder(e *jx.Encoder, o order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(o.ID) })
		e.Field("member_id", func(e *jx.Encoder) { e.Int64(o.MemberID) })
		e.Field("total_amount", func(e *jx.Encoder) { e.Int64(o.TotalAmount) })
		e.Field("date", func(e *jx.Encoder) { e.Str(o.Date.UTC().Format(time.RFC3339)) })
	})
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req order.PlaceRequest
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "member_id":
			v, err := d.Int64()
			req.MemberID = v
			return err
		case "total_amount":
			v, err := d.Int64()
			req.TotalAmount = v
			return err
		case "date":
			if d.Next() == jx.Null {
				return d.Null()
			}
			s, err := d.Str()
			if err != nil {
				return err
			}
			req.Date, err = parseDate(s)
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	o, err := h.orders.Place(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	var e jx.Encoder
	encodeOrder(&e, *o)
	writeJSON(w, http.StatusCreated, &e)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	page, err := pageParam(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	orders, err := h.orders.List(r.Context(), page)
	if err != nil {
		fail(w, r, err)
		return
	}
	var e jx.Encoder
	encodeArr(&e, orders, encodeOrder)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	var e jx.Encoder
	encodeOrder(&e, *o)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	o, err := h.orders.Delete(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	var e jx.Encoder
	encodeOrder(&e, *o)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) attachProduct(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	var productID int64
	err = decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "product_id" {
			return d.Skip()
		}
		v, err := d.Int64()
		productID = v
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	if productID <= 0 {
		fail(w, r, badRequest("product_id is required"))
		return
	}

	products, err := h.products.AttachToOrder(r.Context(), orderID, productID)
	if err != nil {
		fail(w, r, err)
		return
	}
	var e jx.Encoder
	encodeArr(&e, products, encodeProduct)
	writeJSON(w, http.StatusCreated, &e)
}

func (h *Handler) orderProducts(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	if _, err := h.orders.Get(r.Context(), orderID); err != nil {
		fail(w, r, err)
		return
	}
	products, err := h.products.ListByOrder(r.Context(), orderID)
	if err != nil {
		fail(w, r, err)
		return
	}
	var e jx.Encoder
	encodeArr(&e, products, encodeProduct)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) verifyMonetary(w http.ResponseWriter, r *http.Request) {
	repaired, err := h.orders.VerifyMonetary(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("repaired", func(e *jx.Encoder) {
			encodeArr(e, repaired, func(e *jx.Encoder, d order.Drift) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("member_id", func(e *jx.Encoder) { e.Int64(d.MemberID) })
					e.Field("stored", func(e *jx.Encoder) { e.Int64(d.Stored) })
					e.Field("actual", func(e *jx.Encoder) { e.Int64(d.Actual) })
				})
			})
		})
	})
	writeJSON(w, http.StatusOK, &e)
}
