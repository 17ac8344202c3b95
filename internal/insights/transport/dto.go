package transport

type SnapshotQuery struct {
	OrgScope   string `form:"orgScope" json:"orgScope" validate:"omitempty,uuid"`
	WindowDays int    `form:"windowDays" json:"windowDays" validate:"omitempty,min=1,max=365"`
	Refresh    bool   `form:"refresh" json:"refresh"`
}

type InvalidateResponse struct {
	Invalidated bool `json:"invalidated"`
}
