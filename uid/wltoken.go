package uid

// WLTOKEN enumerates the well-known endpoint tokens reserved by the flow
// wire protocol. Any UID whose Second word is zero and whose First word is
// below wltokenCount falls in the reserved range; every other UID is an
// ephemeral endpoint (see New).
type WLTOKEN int

const (
	// WLTOKENPingPacket answers liveness probes; its reply carries no
	// payload (§8 S1).
	WLTOKENPingPacket WLTOKEN = iota
	// WLTOKENNetworkTest is a loopback/throughput test endpoint.
	WLTOKENNetworkTest
	// WLTOKENReservedForTesting is reserved for the original protocol's
	// network-test harness; kept distinct from WLTOKENNetworkTest to match
	// the two names used in the upstream dispatch table.
	WLTOKENReservedForTesting
	// WLTOKENEndpointNotFound is never dispatched to directly; the router
	// synthesizes replies addressed with this token when no handler or
	// pending-reply entry matches (§4.6).
	WLTOKENEndpointNotFound
	// WLTOKENAuthTenant identifies the tenant-authentication endpoint.
	WLTOKENAuthTenant
	// WLTOKENUnauthorizedEndpoint is used to reply when a request targets
	// an endpoint the caller is not authorized to reach.
	WLTOKENUnauthorizedEndpoint

	wltokenCount
)

var wltokenNames = [wltokenCount]string{
	WLTOKENPingPacket:           "PingPacket",
	WLTOKENNetworkTest:          "NetworkTest",
	WLTOKENReservedForTesting:   "ReservedForTesting",
	WLTOKENEndpointNotFound:     "EndpointNotFound",
	WLTOKENAuthTenant:           "AuthTenant",
	WLTOKENUnauthorizedEndpoint: "UnauthorizedEndpoint",
}

func (t WLTOKEN) String() string {
	if t < 0 || int(t) >= len(wltokenNames) {
		return "WLTOKEN(unknown)"
	}
	return wltokenNames[t]
}

// WellKnownUID returns the reserved UID addressing the given well-known
// token. It is the inverse of Classify for well-known tokens.
func WellKnownUID(t WLTOKEN) UID {
	return UID{First: uint64(t), Second: 0}
}

// Classify reports whether u lives in the well-known reserved range and,
// if so, which token it names. Classification is total: every UID either
// classifies as exactly one WLTOKEN or is ephemeral.
func Classify(u UID) (token WLTOKEN, ok bool) {
	if u.Second != 0 {
		return 0, false
	}
	if u.First >= uint64(wltokenCount) {
		return 0, false
	}
	return WLTOKEN(u.First), true
}

// IsWellKnown reports whether u falls in the reserved well-known range.
func IsWellKnown(u UID) bool {
	_, ok := Classify(u)
	return ok
}
