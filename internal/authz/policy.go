package authz

import (
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/frahmantamala/acuhire/internal"
	coreUser "github.com/frahmantamala/acuhire/internal/core/user"
)

type Action string

const (
	ActionContinue      Action = "continue"
	ActionRedirectLogin Action = "redirect_login"
	ActionRedirectHome  Action = "redirect_home"
)

type Decision struct {
	Action   Action `json:"decision"`
	Location string `json:"location,omitempty"`
}

type roleRoute struct {
	prefix string
	roles  map[coreUser.Role]struct{}
}

// Policy is the static page routing table. A Policy is read-only after
// NewPolicy and safe to share.
type Policy struct {
	loginPath      string
	publicExact    map[string]struct{}
	publicPrefixes []string
	routes         []roleRoute
	homes          map[coreUser.Role]string
	super          map[coreUser.Role]struct{}
}

func DefaultConfig() internal.AuthzConfig {
	return internal.AuthzConfig{
		LoginPath:    "/login",
		PublicRoutes: []string{
			"/", "/login", "/signup", "/forgot-password", "/reset-password",
			// framework bundles and static assets
			"/_next/*", "/static/*", "/favicon.ico", "/robots.txt",
		},
		RoleRoutes: map[string][]string{
			string(coreUser.RoleCandidate): {"/dashboard/candidate", "/interview", "/practice"},
			string(coreUser.RoleCompany):   {"/dashboard/company", "/job-postings", "/analytics"},
			string(coreUser.RoleAdmin):     {"/dashboard/admin", "/admin"},
		},
		RoleHomes: map[string]string{
			string(coreUser.RoleCandidate): "/dashboard/candidate",
			string(coreUser.RoleCompany):   "/dashboard/company",
			string(coreUser.RoleAdmin):     "/dashboard/admin",
		},
		SuperRoles: []string{string(coreUser.RoleAdmin)},
	}
}

func NewPolicy(cfg internal.AuthzConfig) (*Policy, error) {
	p := &Policy{
		loginPath:   Normalize(cfg.LoginPath),
		publicExact: make(map[string]struct{}),
		homes:       make(map[coreUser.Role]string),
		super:       make(map[coreUser.Role]struct{}),
	}

	for _, route := range cfg.PublicRoutes {
		if strings.HasSuffix(route, "/*") {
			p.publicPrefixes = append(p.publicPrefixes, Normalize(strings.TrimSuffix(route, "/*")))
			continue
		}
		p.publicExact[Normalize(route)] = struct{}{}
	}
	p.publicExact[p.loginPath] = struct{}{}

	byPrefix := make(map[string]map[coreUser.Role]struct{})
	for roleName, prefixes := range cfg.RoleRoutes {
		role, ok := coreUser.ParseRole(roleName)
		if !ok {
			return nil, fmt.Errorf("authz: unknown role %q in role_routes", roleName)
		}
		for _, prefix := range prefixes {
			prefix = Normalize(prefix)
			if prefix == "/" {
				return nil, fmt.Errorf("authz: role %s cannot restrict the root path", role)
			}
			if byPrefix[prefix] == nil {
				byPrefix[prefix] = make(map[coreUser.Role]struct{})
			}
			byPrefix[prefix][role] = struct{}{}
		}
	}
	for prefix, roles := range byPrefix {
		p.routes = append(p.routes, roleRoute{prefix: prefix, roles: roles})
	}
	// longest prefix wins
	sort.Slice(p.routes, func(i, j int) bool {
		return len(p.routes[i].prefix) > len(p.routes[j].prefix)
	})

	for roleName, home := range cfg.RoleHomes {
		role, ok := coreUser.ParseRole(roleName)
		if !ok {
			return nil, fmt.Errorf("authz: unknown role %q in role_homes", roleName)
		}
		p.homes[role] = Normalize(home)
	}
	for _, roleName := range cfg.SuperRoles {
		role, ok := coreUser.ParseRole(roleName)
		if !ok {
			return nil, fmt.Errorf("authz: unknown super role %q", roleName)
		}
		p.super[role] = struct{}{}
	}

	for role, home := range p.homes {
		if !p.permits(home, role) {
			return nil, fmt.Errorf("authz: home %s of role %s is not reachable by that role", home, role)
		}
	}
	return p, nil
}

// Decide is total: every (path, caller) pair yields exactly one decision.
// A nil caller is unauthenticated; a caller with an unknown role is treated
// the same way.
func (p *Policy) Decide(rawPath string, caller *internal.Caller) Decision {
	route := Normalize(rawPath)
	if p.isPublic(route) {
		return Decision{Action: ActionContinue}
	}

	var role coreUser.Role
	ok := false
	if caller != nil && caller.UserID != "" {
		role, ok = coreUser.ParseRole(caller.Role)
	}
	if !ok {
		return Decision{Action: ActionRedirectLogin, Location: p.loginLocation(route)}
	}

	if p.permits(route, role) {
		return Decision{Action: ActionContinue}
	}
	return Decision{Action: ActionRedirectHome, Location: p.Home(role)}
}

func (p *Policy) Home(role coreUser.Role) string {
	if home, ok := p.homes[role]; ok {
		return home
	}
	return "/"
}

func (p *Policy) LoginPath() string {
	return p.loginPath
}

func (p *Policy) permits(route string, role coreUser.Role) bool {
	if _, ok := p.super[role]; ok {
		return true
	}
	for _, rr := range p.routes {
		if matchPrefix(route, rr.prefix) {
			_, allowed := rr.roles[role]
			return allowed
		}
	}
	return true
}

func (p *Policy) isPublic(route string) bool {
	if _, ok := p.publicExact[route]; ok {
		return true
	}
	for _, prefix := range p.publicPrefixes {
		if matchPrefix(route, prefix) {
			return true
		}
	}
	return false
}

func (p *Policy) loginLocation(route string) string {
	return p.loginPath + "?callbackUrl=" + url.QueryEscape(route)
}

// matchPrefix matches whole path segments, so /interview does not cover
// /interviewer.
func matchPrefix(route, prefix string) bool {
	if prefix == "/" {
		return true
	}
	return route == prefix || strings.HasPrefix(route, prefix+"/")
}

// Normalize cleans a request path into the form used for matching.
func Normalize(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" || p[0] != '/' {
		p = "/" + p
	}
	return path.Clean(p)
}
