package authflow

// Route is a client-side navigation target.
type Route string

// NavState is explicit state carried along a navigation, for example the
// email forwarded from the reset request to the verification step.
type NavState map[string]string

// NavStateEmail is the NavState key carrying the email bound to the
// verification step.
const NavStateEmail = "email"

// Navigator is the navigation capability injected into controllers.
type Navigator interface {
	Navigate(route Route, state NavState)
}

// NavigatorFunc adapts a function to [Navigator].
type NavigatorFunc func(route Route, state NavState)

// Navigate calls f.
func (f NavigatorFunc) Navigate(route Route, state NavState) {
	f(route, state)
}

// Email returns the bound email carried by s, if any.
func (s NavState) Email() string {
	if s == nil {
		return ""
	}
	return s[NavStateEmail]
}
