package domain

// Known department codes. Department values on records are free-form; these
// codes only carry display labels.
const (
	DepartmentSUR       = "sur"
	DepartmentAR        = "ar"
	DepartmentJZZ       = "jzz"
	DepartmentZwaCri    = "zwacri"
	DepartmentFraude    = "fraude"
	DepartmentUMM       = "umm"
	DepartmentAlpha     = "alpha"
	DepartmentDouane    = "douane"
	DepartmentIND       = "ind"
	DepartmentVerkeer   = "verkeer"
	DepartmentKustwacht = "kustwacht"
	DepartmentPelican   = "pelican"
	DepartmentIBS       = "ibs"
	DepartmentOther     = "other"
)

var departmentLabels = map[string]string{
	DepartmentSUR:       "SUR",
	DepartmentAR:        "AR",
	DepartmentJZZ:       "JZZ",
	DepartmentZwaCri:    "ZwaCri",
	DepartmentFraude:    "Fraude",
	DepartmentUMM:       "UMM",
	DepartmentAlpha:     "Alpha",
	DepartmentDouane:    "Douane",
	DepartmentIND:       "IND",
	DepartmentVerkeer:   "Verkeer",
	DepartmentKustwacht: "Kustwacht",
	DepartmentPelican:   "Pelican",
	DepartmentIBS:       "IBS",
	DepartmentOther:     "Other",
}

// DepartmentLabel returns the display label for a department code. Unknown
// codes are returned unchanged and the empty code renders as "Unassigned".
func DepartmentLabel(code string) string {
	if code == "" {
		return "Unassigned"
	}
	if label, ok := departmentLabels[code]; ok {
		return label
	}
	return code
}

// KnownDepartment reports whether code is one of the registered departments.
func KnownDepartment(code string) bool {
	_, ok := departmentLabels[code]
	return ok
}
