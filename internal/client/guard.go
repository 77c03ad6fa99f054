package client

import (
	"strconv"
	"strings"
)

// ProfilePath is resolved from the current role at navigation time.
const ProfilePath = "/profile"

// Route maps a path pattern to the role it requires. RoleAnonymous marks a public
// route. A ":deptId" segment binds the department a RoleDepartment route belongs to.
type Route struct {
	Pattern  string
	Requires RoleKind
}

// DefaultRoutes is the navigation table of the web client.
var DefaultRoutes = []Route{
	{Pattern: "/", Requires: RoleAnonymous},
	{Pattern: "/login", Requires: RoleAnonymous},
	{Pattern: "/signup", Requires: RoleAnonymous},
	{Pattern: "/adminLogin", Requires: RoleAnonymous},
	{Pattern: "/departmentLogin", Requires: RoleAnonymous},
	{Pattern: "/user-profile", Requires: RoleUser},
	{Pattern: "/user-dashboard", Requires: RoleUser},
	{Pattern: "/registerComplains", Requires: RoleUser},
	{Pattern: "/status", Requires: RoleUser},
	{Pattern: "/admin-profile", Requires: RoleAdmin},
	{Pattern: "/admin-dashboard", Requires: RoleAdmin},
	{Pattern: "/complaints", Requires: RoleAdmin},
	{Pattern: "/dashboard/:deptId", Requires: RoleDepartment},
}

// Decision is the outcome of one navigation: render the page or go elsewhere.
type Decision struct {
	Render   bool
	Redirect string
}

func render() Decision              { return Decision{Render: true} }
func redirect(path string) Decision { return Decision{Redirect: path} }

func (d Decision) String() string {
	if d.Render {
		return "render"
	}
	return "redirect " + d.Redirect
}

// HomeFor is the landing page of a role.
func HomeFor(role Role) string {
	switch role.Kind {
	case RoleUser:
		return "/user-profile"
	case RoleAdmin:
		return "/admin-profile"
	case RoleDepartment:
		return "/dashboard/" + strconv.FormatInt(role.DepartmentID, 10)
	}
	return "/login"
}

// LoginPathFor is the login entry point for pages requiring the role.
func LoginPathFor(required Role) string {
	switch required.Kind {
	case RoleAdmin:
		return "/adminLogin"
	case RoleDepartment:
		return "/departmentLogin"
	}
	return "/login"
}

// Guard decides a navigation to a page requiring required while the caller holds
// current. Authenticated callers in the wrong role go to their own home, never to
// a login page.
func Guard(required, current Role) Decision {
	if required.IsAnonymous() {
		return render()
	}
	if current.IsAnonymous() {
		return redirect(LoginPathFor(required))
	}
	if required.Kind != current.Kind {
		return redirect(HomeFor(current))
	}
	if required.Kind == RoleDepartment && required.DepartmentID != current.DepartmentID {
		return redirect(HomeFor(current))
	}
	return render()
}

// Navigator applies Guard to paths using a route table and the session store.
type Navigator struct {
	sessions *Sessions
	routes   []Route
}

// NewNavigator uses DefaultRoutes when routes is nil.
func NewNavigator(sessions *Sessions, routes []Route) *Navigator {
	if routes == nil {
		routes = DefaultRoutes
	}
	return &Navigator{sessions: sessions, routes: routes}
}

// Navigate decides the requested path. The role is read from the session on every
// call. Unknown paths redirect to "/".
func (n *Navigator) Navigate(path string) Decision {
	current := n.sessions.CurrentRole()
	if path == ProfilePath {
		return redirect(HomeFor(current))
	}
	for _, route := range n.routes {
		params, ok := matchPattern(route.Pattern, path)
		if !ok {
			continue
		}
		required := Role{Kind: route.Requires}
		if route.Requires == RoleDepartment {
			id, err := strconv.ParseInt(params["deptId"], 10, 64)
			if err != nil || id <= 0 {
				return redirect("/")
			}
			required.DepartmentID = id
		}
		return Guard(required, current)
	}
	return redirect("/")
}

func matchPattern(pattern, path string) (map[string]string, bool) {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	want := strings.Split(pattern, "/")
	got := strings.Split(path, "/")
	if len(want) != len(got) {
		return nil, false
	}
	params := map[string]string{}
	for i, segment := range want {
		if strings.HasPrefix(segment, ":") {
			if got[i] == "" {
				return nil, false
			}
			params[segment[1:]] = got[i]
			continue
		}
		if segment != got[i] {
			return nil, false
		}
	}
	return params, true
}
