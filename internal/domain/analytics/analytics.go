// Package analytics computes the fixed customer metrics over order history:
// repurchase rate, per-member active rate and the RFM top segment.
//
// Every calculation reads one Dataset taken from a single consistent snapshot
// and aggregates it in memory. Empty inputs produce empty or zero results.
package analytics

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/retail-crm/internal/domain/member"
	"github.com/xenking/retail-crm/internal/domain/order"
)

const (
	tracerName = "github.com/xenking/retail-crm/internal/domain/analytics"

	day  = 24 * time.Hour
	year = 365 * day
)

// Dataset is a consistent view of members and orders.
type Dataset struct {
	// Members are ordered by ID.
	Members []member.Member
	// Orders holds every order dated on or after the requested lower bound.
	Orders []order.Order
}

// Source provides read-only datasets. Members and orders of one Dataset must
// come from the same snapshot of the store.
type Source interface {
	// Snapshot returns all members and the orders dated on or after since.
	// A zero since selects every order.
	Snapshot(ctx context.Context, since time.Time) (*Dataset, error)
}

// Service runs the analytics calculations against a Source.
type Service struct {
	src    Source
	tracer trace.Tracer
	now    func() time.Time
}

// NewService creates an analytics Service.
func NewService(src Source, tp trace.TracerProvider) *Service {
	return &Service{
		src:    src,
		tracer: tp.Tracer(tracerName),
		now:    time.Now,
	}
}

// RepurchaseRate computes the repurchase rate as of the given time. A zero
// asOf means now.
func (s *Service) RepurchaseRate(ctx context.Context, asOf time.Time) (RepurchaseResult, error) {
	asOf = s.resolve(asOf)
	ctx, span := s.start(ctx, "analytics.RepurchaseRate", asOf)
	defer span.End()

	ds, err := s.src.Snapshot(ctx, asOf.Add(-2*year))
	if err != nil {
		return RepurchaseResult{}, fail(span, err)
	}

	res := RepurchaseRate(ds.Orders, asOf)
	span.SetAttributes(
		attribute.Int("analytics.cohort_size", res.Cohort),
		attribute.Int("analytics.repeat_size", res.Repeat),
	)
	return res, nil
}

// ActiveRates computes the active rate of every member as of the given time.
// A zero asOf means now.
func (s *Service) ActiveRates(ctx context.Context, asOf time.Time) ([]ActiveRate, error) {
	asOf = s.resolve(asOf)
	ctx, span := s.start(ctx, "analytics.ActiveRates", asOf)
	defer span.End()

	ds, err := s.src.Snapshot(ctx, asOf.Add(-year))
	if err != nil {
		return nil, fail(span, err)
	}

	rates := ActiveRates(ds.Members, ds.Orders, asOf)
	span.SetAttributes(attribute.Int("analytics.members", len(rates)))
	return rates, nil
}

// RFMTopSegment selects the top-value member cohort as of the given time. A
// zero asOf means now.
func (s *Service) RFMTopSegment(ctx context.Context, asOf time.Time) ([]member.Member, error) {
	asOf = s.resolve(asOf)
	ctx, span := s.start(ctx, "analytics.RFMTopSegment", asOf)
	defer span.End()

	ds, err := s.src.Snapshot(ctx, time.Time{})
	if err != nil {
		return nil, fail(span, err)
	}

	segment := RFMTopSegment(ds.Members, ds.Orders, asOf)
	span.SetAttributes(attribute.Int("analytics.segment_size", len(segment)))
	return segment, nil
}

func (s *Service) resolve(asOf time.Time) time.Time {
	if asOf.IsZero() {
		return s.now().UTC()
	}
	return asOf.UTC()
}

func (s *Service) start(ctx context.Context, name string, asOf time.Time) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name,
		trace.WithAttributes(attribute.String("analytics.as_of", asOf.Format(time.RFC3339))),
	)
}

func fail(span trace.Span, err error) error {
	err = errors.Wrap(err, "load snapshot")
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
