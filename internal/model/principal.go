package model

import "github.com/google/uuid"

type Role string

const (
	RoleComercial   Role = "comercial"
	RoleSuprimentos Role = "suprimentos"
	RoleDiretoria   Role = "diretoria"
	RoleAdmin       Role = "admin"
)

func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleComercial, RoleSuprimentos, RoleDiretoria, RoleAdmin:
		return Role(raw), true
	default:
		return "", false
	}
}

type Capability string

const (
	CapContractsWrite     Capability = "contracts:write"
	CapPurchasesWrite     Capability = "purchases:write"
	CapSuppliesDashboard  Capability = "dashboards:supplies"
	CapExecutiveDashboard Capability = "dashboards:executive"
)

var roleCapabilities = map[Role][]Capability{
	RoleComercial:   {CapContractsWrite},
	RoleSuprimentos: {CapContractsWrite, CapPurchasesWrite, CapSuppliesDashboard},
	RoleDiretoria:   {CapSuppliesDashboard, CapExecutiveDashboard},
	RoleAdmin:       {CapContractsWrite, CapPurchasesWrite, CapSuppliesDashboard, CapExecutiveDashboard},
}

// Principal is the authenticated caller resolved from the access token.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}

func (p Principal) Can(capability Capability) bool {
	for _, c := range roleCapabilities[p.Role] {
		if c == capability {
			return true
		}
	}
	return false
}

func (p Principal) IsExecutive() bool {
	return p.Role == RoleDiretoria || p.Role == RoleAdmin
}
