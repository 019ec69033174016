package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// RoleFile answers role lookups from a JSON document mapping remote ids to
// role display names:
//
//	{"9f1c...": ["Global Administrator"], "77ab...": []}
//
// Ids absent from the document have no roles.
type RoleFile struct {
	roles map[string][]string
}

// LoadRoleFile reads path.
func LoadRoleFile(path string) (*RoleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read role file: %w", err)
	}
	return ParseRoleFile(data)
}

// ParseRoleFile decodes a role document.
func ParseRoleFile(data []byte) (*RoleFile, error) {
	var roles map[string][]string
	if err := json.Unmarshal(data, &roles); err != nil {
		return nil, fmt.Errorf("failed to decode role file: %w", err)
	}
	if roles == nil {
		roles = map[string][]string{}
	}
	return &RoleFile{roles: roles}, nil
}

// Roles implements protect.RoleLookup.
func (f *RoleFile) Roles(ctx context.Context, remoteID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.roles[remoteID], nil
}
