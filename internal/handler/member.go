package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/retail-crm/internal/domain/member"
)

func encodeMember(e *jx.Encoder, m member.Member) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(m.ID) })
		e.Field("member_name", func(e *jx.Encoder) { e.Str(m.Name) })
		e.Field("sex", func(e *jx.Encoder) { e.Str(m.Sex) })
		e.Field("age", func(e *jx.Encoder) { e.Int(m.Age) })
		e.Field("monetary", func(e *jx.Encoder) { e.Int64(m.Monetary) })
	})
}

func (h *Handler) registerMember(w http.ResponseWriter, r *http.Request) {
	var req member.RegisterRequest
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "member_name":
			req.Name, err = d.Str()
		case "sex":
			req.Sex, err = d.Str()
		case "age":
			req.Age, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	m, err := h.members.Register(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	var e jx.Encoder
	encodeMember(&e, *m)
	writeJSON(w, http.StatusCreated, &e)
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	page, err := pageParam(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	members, err := h.members.List(r.Context(), page)
	if err != nil {
		fail(w, r, err)
		return
	}
	var e jx.Encoder
	encodeArr(&e, members, encodeMember)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) getMember(w http.ResponseWriter, r *http.Request) {
	h.memberByID(w, r, h.members.Get)
}

func (h *Handler) deleteMember(w http.ResponseWriter, r *http.Request) {
	h.memberByID(w, r, h.members.Delete)
}

func (h *Handler) memberByID(w http.ResponseWriter, r *http.Request, op func(context.Context, int64) (*member.Member, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	m, err := op(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	var e jx.Encoder
	encodeMember(&e, *m)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) memberOrders(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	orders, err := h.orders.ListByMember(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	var e jx.Encoder
	encodeArr(&e, orders, encodeOrder)
	writeJSON(w, http.StatusOK, &e)
}
