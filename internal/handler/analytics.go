package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/retail-crm/internal/domain/analytics"
)

func encodeAsOf(e *jx.Encoder, asOf time.Time) {
	e.Field("as_of", func(e *jx.Encoder) {
		if asOf.IsZero() {
			e.Null()
			return
		}
		e.Str(asOf.Format(dateLayout))
	})
}

func (h *Handler) repurchaseRate(w http.ResponseWriter, r *http.Request) {
	asOf, err := asOfParam(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	res, err := h.analytics.RepurchaseRate(r.Context(), asOf)
	if err != nil {
		fail(w, r, err)
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		encodeAsOf(e, asOf)
		e.Field("rate", func(e *jx.Encoder) {
			if res.Empty() {
				e.Null()
				return
			}
			e.Float64(res.Rate)
		})
		e.Field("cohort", func(e *jx.Encoder) { e.Int(res.Cohort) })
		e.Field("repeat", func(e *jx.Encoder) { e.Int(res.Repeat) })
	})
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) activeRate(w http.ResponseWriter, r *http.Request) {
	asOf, err := asOfParam(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	rates, err := h.analytics.ActiveRates(r.Context(), asOf)
	if err != nil {
		fail(w, r, err)
		return
	}

	var e jx.Encoder
	encodeArr(&e, rates, func(e *jx.Encoder, a analytics.ActiveRate) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("member_id", func(e *jx.Encoder) { e.Int64(a.MemberID) })
			e.Field("member_name", func(e *jx.Encoder) { e.Str(a.Name) })
			e.Field("purchase_count", func(e *jx.Encoder) { e.Int(a.PurchaseCount) })
			e.Field("months_since_last_purchase", func(e *jx.Encoder) { e.Float64(a.MonthsSinceLastPurchase) })
			e.Field("active_rate", func(e *jx.Encoder) { e.Float64(a.Rate) })
		})
	})
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) rfm(w http.ResponseWriter, r *http.Request) {
	asOf, err := asOfParam(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	segment, err := h.analytics.RFMTopSegment(r.Context(), asOf)
	if err != nil {
		fail(w, r, err)
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		encodeAsOf(e, asOf)
		e.Field("members", func(e *jx.Encoder) { encodeArr(e, segment, encodeMember) })
	})
	writeJSON(w, http.StatusOK, &e)
}
