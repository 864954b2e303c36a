package host

import (
	"sort"
	"strings"

	"github.com/cryguy/jshandler"
)

// router maps request paths to registrations by longest matching prefix. A
// prefix matches the path itself and anything below it: /hello serves
// /hello and /hello/x but not /helloworld.
type router struct {
	regs []*jshandler.Registration
}

func newRouter(regs []*jshandler.Registration) *router {
	sorted := make([]*jshandler.Registration, len(regs))
	copy(sorted, regs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Route()) > len(sorted[j].Route())
	})
	return &router{regs: sorted}
}

func (r *router) match(path string) *jshandler.Registration {
	for _, reg := range r.regs {
		if prefixMatch(reg.Route(), path) {
			return reg
		}
	}
	return nil
}

func prefixMatch(route, path string) bool {
	route = strings.TrimSuffix(route, "/")
	if !strings.HasPrefix(path, route) {
		return false
	}
	rest := path[len(route):]
	return rest == "" || rest[0] == '/'
}
