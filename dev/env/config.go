package devenv

// PortalTestConfig points the live adapter tests at a real portal, it lives at
// dev/.state/portal_test.json5 and is never committed.
type PortalTestConfig struct {
	Profile  string `json:"profile"`
	Username string `json:"username"`
	Password string `json:"password"`
}
