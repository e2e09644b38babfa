package services

import (
	"context"
	"fmt"
	"time"

	"github.com/codeready-toolchain/docfiler/ent"
	"github.com/codeready-toolchain/docfiler/ent/documentseries"
	"github.com/codeready-toolchain/docfiler/ent/series"
	"github.com/google/uuid"
)

// SeriesRecord is the series detector LLM's typed output (spec §4.I.1),
// parsed by the File stage before this service finds-or-creates the row.
type SeriesRecord struct {
	Entity     string
	SeriesType string
	Owner      string
	Frequency  string
	Title      string
	Description string
	Metadata   map[string]interface{}
}

// SeriesService owns series identity (entity, series_type, owner) and
// document membership.
type SeriesService struct {
	client *ent.Client
}

// NewSeriesService creates a new SeriesService.
func NewSeriesService(client *ent.Client) *SeriesService {
	return &SeriesService{client: client}
}

// FindOrCreate returns the series matching (entity, series_type, owner),
// creating it from rec if it does not exist yet. Two detect calls whose
// outputs agree on that key always map to the same row (spec §8 invariant 7).
func (s *SeriesService) FindOrCreate(ctx context.Context, rec SeriesRecord) (*ent.Series, error) {
	if rec.Entity == "" || rec.SeriesType == "" {
		return nil, NewValidationError("series", "entity and series_type are required")
	}

	q := s.client.Series.Query().Where(
		series.EntityEQ(rec.Entity),
		series.SeriesTypeEQ(rec.SeriesType),
	)
	if rec.Owner == "" {
		q = q.Where(series.OwnerIsNil())
	} else {
		q = q.Where(series.OwnerEQ(rec.Owner))
	}

	existing, err := q.Only(ctx)
	switch {
	case err == nil:
		return existing, nil
	case ent.IsNotFound(err):
		builder := s.client.Series.Create().
			SetID(uuid.New().String()).
			SetTitle(rec.Title).
			SetEntity(rec.Entity).
			SetSeriesType(rec.SeriesType).
			SetSource(series.SourceLlm)
		if rec.Owner != "" {
			builder.SetOwner(rec.Owner)
		}
		if rec.Frequency != "" {
			builder.SetFrequency(rec.Frequency)
		}
		if rec.Description != "" {
			builder.SetDescription(rec.Description)
		}
		if rec.Metadata != nil {
			builder.SetMetadata(rec.Metadata)
		}
		created, createErr := builder.Save(ctx)
		if createErr != nil {
			if ent.IsConstraintError(createErr) {
				// Lost the create race; the winning row satisfies the same query.
				winner, getErr := q.Only(ctx)
				if getErr != nil {
					return nil, fmt.Errorf("%w: series %s/%s: %v", ErrAlreadyExists, rec.Entity, rec.SeriesType, getErr)
				}
				return winner, nil
			}
			return nil, fmt.Errorf("create series: %w", createErr)
		}
		return created, nil
	default:
		return nil, fmt.Errorf("query series: %w", err)
	}
}

// AddMembership links documentID to seriesID (idempotent) and refreshes
// the series' document_count and first/last_document_date bookkeeping.
func (s *SeriesService) AddMembership(ctx context.Context, documentID, seriesID string, documentCreatedAt time.Time) error {
	exists, err := s.client.DocumentSeries.Query().
		Where(documentseries.DocumentIDEQ(documentID), documentseries.SeriesIDEQ(seriesID)).
		Exist(ctx)
	if err != nil {
		return fmt.Errorf("check series membership: %w", err)
	}
	if exists {
		return nil
	}

	if err := s.client.DocumentSeries.Create().
		SetDocumentID(documentID).
		SetSeriesID(seriesID).
		Exec(ctx); err != nil {
		return fmt.Errorf("add series membership: %w", err)
	}

	ser, err := s.client.Series.Get(ctx, seriesID)
	if err != nil {
		return fmt.Errorf("get series %s: %w", seriesID, err)
	}

	upd := s.client.Series.UpdateOneID(seriesID).
		SetDocumentCount(ser.DocumentCount + 1)
	if ser.FirstDocumentDate == nil || documentCreatedAt.Before(*ser.FirstDocumentDate) {
		upd.SetFirstDocumentDate(documentCreatedAt)
	}
	if ser.LastDocumentDate == nil || documentCreatedAt.After(*ser.LastDocumentDate) {
		upd.SetLastDocumentDate(documentCreatedAt)
	}
	if err := upd.Exec(ctx); err != nil {
		return fmt.Errorf("update series %s bookkeeping: %w", seriesID, err)
	}
	return nil
}
