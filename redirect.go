package authflow

// Redirector maps a role to its landing route.
type Redirector struct {
	admin    Route
	fallback Route
}

// NewRedirector returns a Redirector for the configured routes.
func NewRedirector(routes RoutesConfig) Redirector {
	return Redirector{admin: routes.AdminLanding, fallback: routes.DefaultLanding}
}

// DestinationFor returns the admin landing route for the admin role and the
// default landing route for every other value, including unknown or empty
// roles. Roles are compared case-insensitively.
func (r Redirector) DestinationFor(role string) Route {
	if NormalizeRole(role) == RoleAdmin {
		return r.admin
	}
	return r.fallback
}

// DestinationFor applies the default routes.
func DestinationFor(role string) Route {
	return NewRedirector(defaultConfig().Routes).DestinationFor(role)
}
