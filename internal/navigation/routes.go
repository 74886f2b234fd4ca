package navigation

// Meta 路由访问控制标记
type Meta struct {
	RequiresAuth  bool
	RequiresGuest bool
	RequiresAdmin bool
	IsLanding     bool
}

// Route 路由定义，Pattern 中以 ":" 开头的段为参数
type Route struct {
	Name    string
	Pattern string
	Meta    Meta
}

const (
	RouteLanding           = "landing"
	RouteHome              = "home"
	RouteLogin             = "login"
	RouteProfileCompletion = "profile-completion"
	RouteNotFound          = "not-found"
)

// DefaultRoutes 静态路由需排在同级参数路由之前
func DefaultRoutes() []Route {
	return []Route{
		{Name: RouteLanding, Pattern: "/", Meta: Meta{IsLanding: true}},
		{Name: RouteHome, Pattern: "/dashboard", Meta: Meta{RequiresAuth: true}},
		{Name: RouteLogin, Pattern: "/auth/login", Meta: Meta{RequiresGuest: true}},
		{Name: "register", Pattern: "/auth/register", Meta: Meta{RequiresGuest: true}},
		{Name: "verify-email", Pattern: "/auth/verify", Meta: Meta{RequiresGuest: true}},
		{Name: "auth-callback", Pattern: "/auth/callback"},
		{Name: RouteProfileCompletion, Pattern: "/auth/complete-profile", Meta: Meta{RequiresAuth: true}},
		{Name: "club-list", Pattern: "/clubs", Meta: Meta{RequiresAuth: true}},
		{Name: "club-create", Pattern: "/clubs/create", Meta: Meta{RequiresAuth: true}},
		{Name: "club-detail", Pattern: "/clubs/:id", Meta: Meta{RequiresAuth: true}},
		{Name: "club-manage", Pattern: "/clubs/:id/manage", Meta: Meta{RequiresAuth: true}},
		{Name: "member-list", Pattern: "/members", Meta: Meta{RequiresAuth: true}},
		{Name: "member-manage", Pattern: "/members/manage", Meta: Meta{RequiresAuth: true, RequiresAdmin: true}},
		{Name: "season-list", Pattern: "/seasons", Meta: Meta{RequiresAuth: true}},
		{Name: "season-detail", Pattern: "/seasons/:seasonId", Meta: Meta{RequiresAuth: true}},
		{Name: "session-list", Pattern: "/sessions", Meta: Meta{RequiresAuth: true}},
		{Name: "session-detail", Pattern: "/sessions/:sessionId", Meta: Meta{RequiresAuth: true}},
		{Name: "match-list", Pattern: "/matches", Meta: Meta{RequiresAuth: true}},
		{Name: "ranking-list", Pattern: "/rankings", Meta: Meta{RequiresAuth: true}},
	}
}
