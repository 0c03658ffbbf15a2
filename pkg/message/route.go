package message

// Route identifies which chain a registration lands in.
type Route uint8

const (
	RouteUntargeted Route = iota + 1
	RouteTargeted
	RouteTargetedWithoutTargeting
	RouteBroadcast
	RouteBroadcastWithoutSource
	RouteGlobalAcceptAll
	RouteInterceptor
	RoutePostProcessor
)

func (r Route) String() string {
	switch r {
	case RouteUntargeted:
		return "untargeted"
	case RouteTargeted:
		return "targeted"
	case RouteTargetedWithoutTargeting:
		return "targeted-without-targeting"
	case RouteBroadcast:
		return "broadcast"
	case RouteBroadcastWithoutSource:
		return "broadcast-without-source"
	case RouteGlobalAcceptAll:
		return "global-accept-all"
	case RouteInterceptor:
		return "interceptor"
	case RoutePostProcessor:
		return "post-processor"
	default:
		return "unknown"
	}
}

// Category returns the message category a handler route receives. Routes that
// are not tied to one category (global, interceptor, post-processor) return 0.
func (r Route) Category() Category {
	switch r {
	case RouteUntargeted:
		return CategoryUntargeted
	case RouteTargeted, RouteTargetedWithoutTargeting:
		return CategoryTargeted
	case RouteBroadcast, RouteBroadcastWithoutSource:
		return CategoryBroadcast
	default:
		return 0
	}
}

// Bound reports whether the route is keyed by an identity.
func (r Route) Bound() bool {
	return r == RouteTargeted || r == RouteBroadcast
}
