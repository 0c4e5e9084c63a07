package models

// SeriesRequest is the query string of /api/series and /api/summary.
type SeriesRequest struct {
	Columns string `query:"columns" validate:"omitempty,columns"`
	Start   string `query:"start" validate:"omitempty,datetime=2006-01-02"`
	End     string `query:"end" validate:"omitempty,datetime=2006-01-02"`
}

// DashboardRequest is the query string of /api/dashboard.
type DashboardRequest struct {
	Primary   string `query:"primary" validate:"omitempty,max=64"`
	Secondary string `query:"secondary" validate:"omitempty,max=64"`
	Start     string `query:"start" validate:"omitempty,datetime=2006-01-02"`
	End       string `query:"end" validate:"omitempty,datetime=2006-01-02"`
}
