package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/retail-crm/internal/domain/season"
)

func encodeSale(e *jx.Encoder, s season.Sale) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("year", func(e *jx.Encoder) { e.Int(s.Year) })
		e.Field("season", func(e *jx.Encoder) { e.Int(s.Season) })
		e.Field("sale", func(e *jx.Encoder) { e.Int64(s.Amount) })
	})
}

func decodeSale(r *http.Request, s *season.Sale) error {
	return decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "year":
			s.Year, err = d.Int()
		case "season":
			s.Season, err = d.Int()
		case "sale":
			s.Amount, err = d.Int64()
		default:
			err = d.Skip()
		}
		return err
	})
}

// saleKey reads the {year}/{season} path values.
func saleKey(r *http.Request) (year, s int, err error) {
	if year, err = pathInt(r, "year"); err != nil {
		return 0, 0, err
	}
	if s, err = pathInt(r, "season"); err != nil {
		return 0, 0, err
	}
	return year, s, nil
}

func writeSale(w http.ResponseWriter, status int, s *season.Sale) {
	var e jx.Encoder
	encodeSale(&e, *s)
	writeJSON(w, status, &e)
}

func writeSales(w http.ResponseWriter, sales []season.Sale) {
	var e jx.Encoder
	encodeArr(&e, sales, encodeSale)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) recordSale(w http.ResponseWriter, r *http.Request) {
	var s season.Sale
	if err := decodeSale(r, &s); err != nil {
		fail(w, r, err)
		return
	}
	sale, err := h.seasons.Record(r.Context(), s)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeSale(w, http.StatusCreated, sale)
}

func (h *Handler) updateSale(w http.ResponseWriter, r *http.Request) {
	year, sn, err := saleKey(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	var s season.Sale
	if err := decodeSale(r, &s); err != nil {
		fail(w, r, err)
		return
	}
	// The path identifies the sale; body year and season are ignored.
	s.Year, s.Season = year, sn

	sale, err := h.seasons.Update(r.Context(), s)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeSale(w, http.StatusOK, sale)
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	year, sn, err := saleKey(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	sale, err := h.seasons.Get(r.Context(), year, sn)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeSale(w, http.StatusOK, sale)
}

func (h *Handler) deleteSale(w http.ResponseWriter, r *http.Request) {
	year, sn, err := saleKey(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	sale, err := h.seasons.Delete(r.Context(), year, sn)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeSale(w, http.StatusOK, sale)
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.seasons.List(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeSales(w, sales)
}

func (h *Handler) salesByYear(w http.ResponseWriter, r *http.Request) {
	year, err := pathInt(r, "year")
	if err != nil {
		fail(w, r, err)
		return
	}
	sales, err := h.seasons.ListByYear(r.Context(), year)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeSales(w, sales)
}

func (h *Handler) salesBySeason(w http.ResponseWriter, r *http.Request) {
	sn, err := pathInt(r, "season")
	if err != nil {
		fail(w, r, err)
		return
	}
	sales, err := h.seasons.ListBySeason(r.Context(), sn)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeSales(w, sales)
}
