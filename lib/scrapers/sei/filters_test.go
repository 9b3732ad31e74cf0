package sei

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func boolPtr(v bool) *bool { return &v }

func filterFixture() []*Process {
	return []*Process{
		{
			Number:       "1500.01.0000001/2025-01",
			ProcedureId:  "1",
			Category:     CategoryReceived,
			Seen:         false,
			TypeDetail:   "Administrativo: Diárias",
			AssigneeName: "Maria Silva",
			Markers:      []string{"Aguardando retorno"},
		},
		{
			Number:          "1500.01.0000002/2025-02",
			ProcedureId:     "2",
			Category:        CategoryReceived,
			Seen:            true,
			TypeDetail:      "Administrativo: Pagamento",
			AssigneeId:      "jsantos",
			HasNewDocuments: true,
		},
		{
			Number:      "1500.01.0000003/2025-03",
			ProcedureId: "3",
			Category:    CategoryGenerated,
			Seen:        true,
			Title:       "Prestação de contas",
		},
	}
}

func TestApplyFiltersCategory(t *testing.T) {
	filtered := ApplyFilters(filterFixture(), FilterOptions{Categories: []Category{CategoryGenerated}})
	require.Len(t, filtered, 1)
	require.Equal(t, "3", filtered[0].ProcedureId)
}

func TestApplyFiltersSeen(t *testing.T) {
	filtered := ApplyFilters(filterFixture(), FilterOptions{Seen: boolPtr(false)})
	require.Len(t, filtered, 1)
	require.Equal(t, "1", filtered[0].ProcedureId)

	filtered = ApplyFilters(filterFixture(), FilterOptions{HasNewDocuments: boolPtr(true)})
	require.Len(t, filtered, 1)
	require.Equal(t, "2", filtered[0].ProcedureId)
}

func TestApplyFiltersText(t *testing.T) {
	// assignee terms match name or id, case-insensitively
	filtered := ApplyFilters(filterFixture(), FilterOptions{Assignees: []string{"silva", "JSANTOS"}})
	require.Len(t, filtered, 2)

	// type terms also look at the title
	filtered = ApplyFilters(filterFixture(), FilterOptions{Types: []string{"prestação"}})
	require.Len(t, filtered, 1)
	require.Equal(t, "3", filtered[0].ProcedureId)

	filtered = ApplyFilters(filterFixture(), FilterOptions{Markers: []string{"aguardando"}})
	require.Len(t, filtered, 1)
	require.Equal(t, "1", filtered[0].ProcedureId)
}

func TestApplyFiltersLimit(t *testing.T) {
	fixture := filterFixture()
	filtered := ApplyFilters(fixture, FilterOptions{Limit: 2})
	require.Len(t, filtered, 2)
	require.Equal(t, fixture[0], filtered[0])

	// a negative limit is ignored
	require.Len(t, ApplyFilters(fixture, FilterOptions{Limit: -1}), 3)
	// no filters returns everything in order
	require.Equal(t, fixture, ApplyFilters(fixture, FilterOptions{}))
}
