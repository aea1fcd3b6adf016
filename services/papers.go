package services

import (
	"context"
	"strings"

	"paper-vault/models"

	"go.uber.org/zap"
)

// Pagination-Grenzen wie an der API dokumentiert: Default 12, hartes
// Limit 50 zum Schutz der Datenbank.
const (
	DefaultPageLimit = 12
	MaxPageLimit     = 50
)

// Page sind normalisierte Pagination-Parameter.
type Page struct {
	Limit  int
	Offset int
}

// NormalizePage setzt unbrauchbare Werte auf die Defaults zurück:
// Limit <= 0 wird zu 12, Limit > 50 wird gekappt, Offset < 0 wird zu 0.
func NormalizePage(limit, offset int) Page {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}

// PaperFilter ist die Konjunktion optionaler Prädikate für die
// Katalog-Abfrage. Approved ist immer gesetzt: true für den öffentlichen
// Katalog, false für die Admin-Moderationsliste.
type PaperFilter struct {
	Approved   bool
	Semester   *int
	Year       *int
	Subject    string
	Department string
	Program    string
	ID         *uint
}

// Submission sind die Metadaten einer Einreichung. Specialization wird
// intern unter dem Alt-Namen "department" persistiert.
type Submission struct {
	Title          string
	Subject        string
	Semester       int
	Year           int
	Specialization string
	Program        string
	URL            string
	FileName       string
}

// Validate prüft alle Pflichtfelder und zählt Verstöße unter ihren
// API-Feldnamen auf. nil bedeutet: Einreichung ist gültig.
func (s *Submission) Validate() *ValidationError {
	var fields []string
	if strings.TrimSpace(s.Title) == "" {
		fields = append(fields, "title")
	}
	if strings.TrimSpace(s.Subject) == "" {
		fields = append(fields, "subject")
	}
	if s.Semester < 1 || s.Semester > 8 {
		fields = append(fields, "semester")
	}
	if s.Year < 2000 || s.Year > 2100 {
		fields = append(fields, "year")
	}
	if strings.TrimSpace(s.Specialization) == "" {
		fields = append(fields, "specialization")
	}
	if strings.TrimSpace(s.Program) == "" {
		fields = append(fields, "program")
	}
	if strings.TrimSpace(s.URL) == "" {
		fields = append(fields, "url")
	}
	if strings.TrimSpace(s.FileName) == "" {
		fields = append(fields, "fileName")
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// QueryResult ist der Antwort-Umschlag der Katalog-Abfrage.
// NextOffset/PrevOffset sind nil, wenn es keine weitere bzw. vorherige
// Seite gibt.
type QueryResult struct {
	Papers     []models.Paper
	Count      int
	Total      int64
	Limit      int
	Offset     int
	HasMore    bool
	NextOffset *int
	PrevOffset *int
}

// CatalogService beantwortet die gefilterte, paginierte Katalog-Abfrage.
type CatalogService struct {
	Papers PaperRepository
	Log    *zap.Logger
}

func NewCatalogService(papers PaperRepository, log *zap.Logger) *CatalogService {
	return &CatalogService{Papers: papers, Log: log}
}

// Query führt die Abfrage aus und berechnet die Pagination-Metadaten.
func (s *CatalogService) Query(ctx context.Context, filter PaperFilter, page Page) (*QueryResult, error) {
	papers, total, err := s.Papers.Query(ctx, filter, page)
	if err != nil {
		s.Log.Error("Paper query failed", zap.Error(err))
		return nil, err
	}

	result := &QueryResult{
		Papers: papers,
		Count:  len(papers),
		Total:  total,
		Limit:  page.Limit,
		Offset: page.Offset,
	}
	result.HasMore = int64(page.Offset+len(papers)) < total
	if result.HasMore {
		next := page.Offset + len(papers)
		result.NextOffset = &next
	}
	if page.Offset > 0 {
		prev := page.Offset - page.Limit
		if prev < 0 {
			prev = 0
		}
		result.PrevOffset = &prev
	}
	return result, nil
}
