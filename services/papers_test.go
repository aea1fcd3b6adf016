package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNormalizePage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		limit      int
		offset     int
		wantLimit  int
		wantOffset int
	}{
		{"defaults", 0, 0, 12, 0},
		{"negative limit resets", -5, 0, 12, 0},
		{"cap at fifty", 200, 0, 50, 0},
		{"negative offset resets", 20, -3, 20, 0},
		{"valid values pass through", 30, 24, 30, 24},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			page := NormalizePage(tt.limit, tt.offset)
			assert.Equal(t, tt.wantLimit, page.Limit)
			assert.Equal(t, tt.wantOffset, page.Offset)
		})
	}
}

func TestSubmissionValidate(t *testing.T) {
	t.Parallel()

	sub := validSubmission()
	assert.Nil(t, sub.Validate())

	empty := Submission{}
	verr := empty.Validate()
	require.NotNil(t, verr)
	assert.Equal(t,
		[]string{"title", "subject", "semester", "year", "specialization", "program", "url", "fileName"},
		verr.Fields)
}

func seedCatalog(t *testing.T, papers *memPaperRepo, count int, approved bool) {
	t.Helper()
	svc, _, _ := newApprovalFixture()
	svc.Papers = papers
	admin := adminClaims("admin@x.com")
	for i := 0; i < count; i++ {
		sub := validSubmission()
		sub.Title = fmt.Sprintf("Paper %d", i)
		paper, err := svc.Submit(context.Background(), userClaims("a@x.com"), sub)
		require.NoError(t, err)
		if approved {
			_, err = svc.Approve(context.Background(), admin, paper.ID)
			require.NoError(t, err)
		}
	}
}

func TestCatalogQuery_Pagination(t *testing.T) {
	t.Parallel()

	papers := newMemPaperRepo()
	seedCatalog(t, papers, 30, true)
	catalog := NewCatalogService(papers, zap.NewNop())

	// Erste Seite: hasMore, nextOffset = offset + zurückgegebene Anzahl.
	result, err := catalog.Query(context.Background(), PaperFilter{Approved: true}, NormalizePage(12, 0))
	require.NoError(t, err)
	assert.Equal(t, 12, result.Count)
	assert.Equal(t, int64(30), result.Total)
	assert.True(t, result.HasMore)
	require.NotNil(t, result.NextOffset)
	assert.Equal(t, 12, *result.NextOffset)
	assert.Nil(t, result.PrevOffset)

	// Letzte Seite: kein nextOffset mehr, prevOffset zeigt zurück.
	result, err = catalog.Query(context.Background(), PaperFilter{Approved: true}, NormalizePage(12, 24))
	require.NoError(t, err)
	assert.Equal(t, 6, result.Count)
	assert.False(t, result.HasMore)
	assert.Nil(t, result.NextOffset)
	require.NotNil(t, result.PrevOffset)
	assert.Equal(t, 12, *result.PrevOffset)
}

func TestCatalogQuery_NewestFirst(t *testing.T) {
	t.Parallel()

	papers := newMemPaperRepo()
	seedCatalog(t, papers, 3, true)
	catalog := NewCatalogService(papers, zap.NewNop())

	result, err := catalog.Query(context.Background(), PaperFilter{Approved: true}, NormalizePage(12, 0))
	require.NoError(t, err)
	require.Equal(t, 3, result.Count)
	assert.Equal(t, "Paper 2", result.Papers[0].Title)
	assert.Equal(t, "Paper 0", result.Papers[2].Title)
}

func TestCatalogQuery_Filters(t *testing.T) {
	t.Parallel()

	papers := newMemPaperRepo()
	svc, _, _ := newApprovalFixture()
	svc.Papers = papers
	admin := adminClaims("admin@x.com")

	sub := validSubmission() // semester 3, CSE
	created, err := svc.Submit(context.Background(), userClaims("a@x.com"), sub)
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), admin, created.ID)
	require.NoError(t, err)

	other := validSubmission()
	other.Specialization = "ECE"
	other.Semester = 4
	pending, err := svc.Submit(context.Background(), userClaims("b@x.com"), other)
	require.NoError(t, err)
	_ = pending

	catalog := NewCatalogService(papers, zap.NewNop())
	semester := 3

	result, err := catalog.Query(context.Background(),
		PaperFilter{Approved: true, Semester: &semester, Department: "CSE"}, NormalizePage(12, 0))
	require.NoError(t, err)
	require.Equal(t, 1, result.Count)
	assert.Equal(t, created.ID, result.Papers[0].ID)

	wrongSemester := 4
	result, err = catalog.Query(context.Background(),
		PaperFilter{Approved: true, Semester: &wrongSemester}, NormalizePage(12, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Count, "pending papers and other semesters are excluded")

	// Substring-Filter auf Subject ist case-insensitive.
	result, err = catalog.Query(context.Background(),
		PaperFilter{Approved: true, Subject: "cs1"}, NormalizePage(12, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)
}

func TestCatalogQuery_ModerationListSeesOnlyPending(t *testing.T) {
	t.Parallel()

	papers := newMemPaperRepo()
	seedCatalog(t, papers, 2, true)
	seedCatalog(t, papers, 3, false)
	catalog := NewCatalogService(papers, zap.NewNop())

	result, err := catalog.Query(context.Background(), PaperFilter{Approved: false}, NormalizePage(12, 0))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Count)
	for _, p := range result.Papers {
		assert.False(t, p.AdminApproved)
	}
}
