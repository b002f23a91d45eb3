package services

import "errors"

var (
	// ErrRateNotConfigured is returned when a department row has day
	// counts but its department has no rate configured yet.
	ErrRateNotConfigured = errors.New("department rate not configured")

	// ErrTeamInUse blocks deletion of a team referenced by work or rate rows.
	ErrTeamInUse = errors.New("team has recorded work or rates")

	// ErrDepartmentInUse blocks deletion of a department referenced by work rows.
	ErrDepartmentInUse = errors.New("department has recorded work")

	// ErrReservedDepartment rejects master edits on the civil department,
	// which is managed internally.
	ErrReservedDepartment = errors.New("department name is reserved")
)
