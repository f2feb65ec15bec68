// Package routes is the gateway's registry of the application's
// guarded areas: which proxied path prefixes require which route key.
package routes

import "strings"

// Route keys as the backend knows them.
const (
	KeyPurchases   = "purchases"
	KeyReceipts    = "receipts"
	KeyCutting     = "cutting"
	KeyUserForms   = "userForms"
	KeySecretariat = "secretariat-user"
	KeyArchive     = "archive"
	KeyUsers       = "users"
)

// System keys for the per-user systemAccess map.
const (
	SystemProcurement = "procurement"
	SystemCutting     = "cutting"
	SystemSecretariat = "secretariat"
	SystemArchive     = "archive"
)

type route struct {
	prefix string
	key    string
}

// Longest prefixes first, so /api/users/roles resolves before /api/users
// would shadow a more specific area if one is ever added.
var table = []route{
	{"/api/purchases", KeyPurchases},
	{"/api/receipts", KeyReceipts},
	{"/api/cutting", KeyCutting},
	{"/api/user-forms", KeyUserForms},
	{"/api/secretariat", KeySecretariat},
	{"/api/archive", KeyArchive},
	{"/api/users", KeyUsers},
}

// KeyFor returns the route key guarding path, or "" when the path is
// not tagged: untagged paths are open to any authenticated user.
func KeyFor(path string) string {
	for _, r := range table {
		if path == r.prefix || strings.HasPrefix(path, r.prefix+"/") {
			return r.key
		}
	}
	return ""
}
