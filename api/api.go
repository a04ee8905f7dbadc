// Package api implements the three proxy listings served by the service.
package api

import (
	"github.com/martin-sucha/proxy-listing/apache2"
	"github.com/martin-sucha/proxy-listing/config"
	"github.com/martin-sucha/proxy-listing/listing"
)

// Paths the listings are served at.
const (
	RootPath     = "/"
	IpstudioPath = "/x-ipstudio/"
	NmosPath     = "/x-nmos/"
)

const (
	ipstudioNamespace = "x-ipstudio"
	nmosNamespace     = "x-nmos"
)

// Handler produces the listing served at a path.
type Handler func() listing.Listing

// RouteRegistrable binds handlers to URL paths.
type RouteRegistrable interface {
	Route(path string, h Handler)
}

// API lists the proxied paths of the configured site directories.
// Every call rescans the directories. API is safe for concurrent use.
type API struct {
	aliasSites string
	proxySites string
	scanner    *listing.Scanner
}

// New returns an API scanning the directories of cfg. A nil scanner means a default one.
func New(cfg config.Config, scanner *listing.Scanner) *API {
	if scanner == nil {
		scanner = &listing.Scanner{}
	}
	return &API{
		aliasSites: cfg.AliasSites,
		proxySites: cfg.ProxySites,
		scanner:    scanner,
	}
}

// Register binds the listings to their paths on r.
func (a *API) Register(r RouteRegistrable) {
	r.Route(RootPath, a.ListRoot)
	r.Route(IpstudioPath, a.ListIpstudio)
	r.Route(NmosPath, a.ListNmos)
}

// ListRoot returns both namespaces and the aliases of the alias sites directory.
func (a *API) ListRoot() listing.Listing {
	return listing.Merge(
		listing.New(ipstudioNamespace+"/", nmosNamespace+"/"),
		a.scanner.Scan(a.aliasSites, apache2.AliasMatcher()),
	)
}

// ListIpstudio returns the x-ipstudio locations of the proxy sites directory.
func (a *API) ListIpstudio() listing.Listing {
	return a.scanner.Scan(a.proxySites, apache2.LocationMatcher(ipstudioNamespace))
}

// ListNmos returns the x-nmos locations of the proxy sites directory.
func (a *API) ListNmos() listing.Listing {
	return a.scanner.Scan(a.proxySites, apache2.LocationMatcher(nmosNamespace))
}

// Lookup returns the handler served at path.
func (a *API) Lookup(path string) (Handler, bool) {
	switch path {
	case RootPath:
		return a.ListRoot, true
	case IpstudioPath:
		return a.ListIpstudio, true
	case NmosPath:
		return a.ListNmos, true
	}
	return nil, false
}
