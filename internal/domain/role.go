package domain

import "fmt"

type Role string

const (
	RoleUser     Role = "user"
	RoleTeamLead Role = "team_lead"
	RoleAdmin    Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleUser, RoleTeamLead, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}
