package core

// YearStatsParams selects a year report. An empty Name disables name filtering.
type YearStatsParams struct {
	Year   int
	Name   string
	Limit  int
	Offset int
}

// YearReport is the paginated view of one year's budget records.
//
// Total counts every record matching the item filter before pagination.
// TotalByType is a year-wide breakdown: it ignores Name and the page window,
// and types without records are absent.
type YearReport struct {
	Total       int64
	TotalByType map[BudgetType]int64
	Items       []BudgetRecord
}

// ItemsFilter is the filter applied to Total and Items.
func (p YearStatsParams) ItemsFilter() RecordFilter {
	return NewRecordFilter().
		Where(YearIs{Year: p.Year}).
		WhereIf(p.Name != "", AuthorNameContains{Pattern: p.Name})
}

// BreakdownFilter is the filter applied to TotalByType.
func (p YearStatsParams) BreakdownFilter() RecordFilter {
	return NewRecordFilter().Where(YearIs{Year: p.Year})
}

func (p YearStatsParams) Page() Page {
	return Page{Limit: p.Limit, Offset: p.Offset}
}

// SumAll returns the sum over every type in the breakdown.
func (r YearReport) SumAll() int64 {
	var total int64
	for _, v := range r.TotalByType {
		total += v
	}
	return total
}
