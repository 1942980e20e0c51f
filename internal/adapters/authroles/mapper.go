package authroles

import (
	domainauth "github.com/oncallops/alertsync/internal/domain/auth"
)

// StaticRoleMapper maps groups by simple string membership rules.
// Unmatched principals become viewers: they can watch the feed but not
// apply transitions.
type StaticRoleMapper struct {
	AdminGroup    string
	OperatorGroup string
}

func (m StaticRoleMapper) Map(groups []string) domainauth.Role {
	for _, g := range groups {
		if m.AdminGroup != "" && g == m.AdminGroup {
			return domainauth.RoleAdmin
		}
	}
	for _, g := range groups {
		if m.OperatorGroup != "" && g == m.OperatorGroup {
			return domainauth.RoleOperator
		}
	}
	return domainauth.RoleViewer
}
