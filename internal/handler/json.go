package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/retail-crm/internal/domain/member"
	"github.com/xenking/retail-crm/internal/domain/order"
	"github.com/xenking/retail-crm/internal/domain/paging"
	"github.com/xenking/retail-crm/internal/domain/product"
	"github.com/xenking/retail-crm/internal/domain/season"
)

const (
	maxBodySize = 1 << 20
	dateLayout  = time.DateOnly
)

// errBadRequest marks malformed input. Its message is returned to the client.
type errBadRequest struct {
	msg string
}

func (e *errBadRequest) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &errBadRequest{msg: errors.Errorf(format, args...).Error()}
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})
	writeJSON(w, status, &e)
}

// fail maps err onto an HTTP status and writes it. Unknown errors are logged
// and hidden behind a generic message.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		badReq  *errBadRequest
		mErr    *member.ValidationError
		oErr    *order.ValidationError
		pErr    *product.ValidationError
		sErr    *season.ValidationError
		invalid = errors.As(err, &mErr) || errors.As(err, &oErr) ||
			errors.As(err, &pErr) || errors.As(err, &sErr)
	)
	switch {
	case errors.As(err, &badReq):
		writeError(w, http.StatusBadRequest, badReq.msg)
	case invalid:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, member.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, product.ErrMaterialNotFound),
		errors.Is(err, season.ErrNotFound),
		errors.Is(err, paging.ErrOutOfRange):
		writeError(w, http.StatusNotFound, rootMessage(err))
	case errors.Is(err, product.ErrDuplicate),
		errors.Is(err, season.ErrAlreadyExists):
		writeError(w, http.StatusConflict, rootMessage(err))
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// rootMessage returns the innermost error message, hiding wrapping context.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

// decodeBody decodes a JSON object from the request body, calling field for
// every key.
func decodeBody(r *http.Request, field func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return badRequest("read body: %v", err)
	}
	if len(data) == 0 {
		return badRequest("empty body")
	}
	if err := jx.DecodeBytes(data).Obj(field); err != nil {
		return badRequest("invalid JSON: %v", err)
	}
	return nil
}

// pathID parses a positive integer path value.
func pathID(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || v <= 0 {
		return 0, badRequest("invalid %s %q", name, r.PathValue(name))
	}
	return v, nil
}

func pathInt(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		return 0, badRequest("invalid %s %q", name, r.PathValue(name))
	}
	return v, nil
}

// pageParam reads ?page=N. A missing page selects every row.
func pageParam(r *http.Request) (paging.Page, error) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return paging.Page{}, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return paging.Page{}, badRequest("invalid page %q", raw)
	}
	return paging.Page{Number: n, Size: paging.DefaultSize}, nil
}

// asOfParam reads ?as_of=YYYY-MM-DD as midnight UTC of that date. A missing
// value returns the zero time, which the analytics service treats as now.
func asOfParam(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, badRequest("invalid as_of %q: want YYYY-MM-DD", raw)
	}
	return d, nil
}

// parseDate accepts RFC 3339 timestamps and plain dates.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, badRequest("invalid date %q", s)
	}
	return t, nil
}

// decodeDecimal accepts a JSON number or a numeric string.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = s
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = n.String()
	}
	return decimal.NewFromString(raw)
}

func encodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.String()))
}

func encodeArr[T any](e *jx.Encoder, items []T, enc func(*jx.Encoder, T)) {
	e.Arr(func(e *jx.Encoder) {
		for _, it := range items {
			enc(e, it)
		}
	})
}
