package config

import (
	"fmt"
	"os"
)

// WriteTemplate writes a starter config to path. An existing file is kept
// unless overwrite is set.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(Template), 0o600)
}

const Template = `[input]
csv = "people.csv"
identity = "userPrincipalName"

[remote]
snapshot = "snapshot/users.json"
# roles = "snapshot/roles.json"

[schema]
# extensions = "schema.yaml"

[protection]
patterns = ["admin@*", "breakglass-*"]
denylist = []
expressions = ['has(entity.userType) && entity.userType == "Guest"']
role_protection = false
protected_roles = ["Global Administrator", "Privileged Role Administrator"]
role_lookup_concurrency = 8

[enrichment]
enabled = true
connection_id = "idsync"
items_out = "out/items.json"
state_path = "state/items.json"
# state_dsn = "postgres://idsync@localhost:5432/idsync"

[output]
delta_out = "out/delta.json"
report_out = "out/report.json"
# metrics_textfile = "/var/lib/node_exporter/idsync.prom"
no_color = false
`
