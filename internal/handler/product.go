package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/retail-crm/internal/domain/product"
)

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
		e.Field("product_name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, p.Price) })
		e.Field("on_hand_balance", func(e *jx.Encoder) { e.Int(p.OnHandBalance) })
		e.Field("leading_time", func(e *jx.Encoder) { e.Int(p.LeadingTime) })
		e.Field("reorder_point", func(e *jx.Encoder) { encodeDecimal(e, p.ReorderPoint) })
		e.Field("needs_reorder", func(e *jx.Encoder) { e.Bool(p.NeedsReorder()) })
	})
}

func encodeMaterial(e *jx.Encoder, m product.Material) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(m.ID) })
		e.Field("material_name", func(e *jx.Encoder) { e.Str(m.Name) })
	})
}

// decodeProductUpdate reads the product fields present in the body.
func decodeProductUpdate(r *http.Request) (product.Update, error) {
	var u product.Update
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "product_name":
			s, err := d.Str()
			u.Name = &s
			return err
		case "price":
			v, err := decodeDecimal(d)
			u.Price = &v
			return err
		case "on_hand_balance":
			v, err := d.Int()
			u.OnHandBalance = &v
			return err
		case "leading_time":
			v, err := d.Int()
			u.LeadingTime = &v
			return err
		case "reorder_point":
			v, err := decodeDecimal(d)
			u.ReorderPoint = &v
			return err
		default:
			return d.Skip()
		}
	})
	return u, err
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	u, err := decodeProductUpdate(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if u.Price == nil {
		fail(w, r, badRequest("price is required"))
		return
	}
	p := u.Apply(product.Product{ReorderPoint: decimal.Zero})

	created, err := h.products.Create(r.Context(), p)
	if err != nil {
		fail(w, r, err)
		return
	}
	var e jx.Encoder
	encodeProduct(&e, *created)
	writeJSON(w, http.StatusCreated, &e)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	page, err := pageParam(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	products, err := h.products.List(r.Context(), page)
	if err != nil {
		fail(w, r, err)
		return
	}
	var e jx.Encoder
	encodeArr(&e, products, encodeProduct)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	p, err := h.products.Get(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	var e jx.Encoder
	encodeProduct(&e, *p)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	u, err := decodeProductUpdate(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	p, err := h.products.Update(r.Context(), id, u)
	if err != nil {
		fail(w, r, err)
		return
	}
	var e jx.Encoder
	encodeProduct(&e, *p)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) addMaterial(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	var materialID int64
	err = decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "material_id" {
			return d.Skip()
		}
		v, err := d.Int64()
		materialID = v
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	if materialID <= 0 {
		fail(w, r, badRequest("material_id is required"))
		return
	}

	bom, err := h.products.AddMaterial(r.Context(), productID, materialID)
	if err != nil {
		fail(w, r, err)
		return
	}
	var e jx.Encoder
	encodeArr(&e, bom, encodeMaterial)
	writeJSON(w, http.StatusCreated, &e)
}

func (h *Handler) productMaterials(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	bom, err := h.products.BillOfMaterials(r.Context(), productID)
	if err != nil {
		fail(w, r, err)
		return
	}
	var e jx.Encoder
	encodeArr(&e, bom, encodeMaterial)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) createMaterial(w http.ResponseWriter, r *http.Request) {
	var name string
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "material_name" {
			return d.Skip()
		}
		s, err := d.Str()
		name = s
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	m, err := h.products.CreateMaterial(r.Context(), strings.TrimSpace(name))
	if err != nil {
		fail(w, r, err)
		return
	}
	var e jx.Encoder
	encodeMaterial(&e, *m)
	writeJSON(w, http.StatusCreated, &e)
}

func (h *Handler) listMaterials(w http.ResponseWriter, r *http.Request) {
	materials, err := h.products.ListMaterials(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	var e jx.Encoder
	encodeArr(&e, materials, encodeMaterial)
	writeJSON(w, http.StatusOK, &e)
}
