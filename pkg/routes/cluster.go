package routes

import (
	"math/rand"
	"sync/atomic"
)

// Load-balancing modes.
const (
	BalanceRoundRobin = "round_robin"
	BalanceRandom     = "random"
)

// Cluster is a named backend target group. Endpoints are resolved at config
// time and immutable afterwards; only the round-robin cursor mutates, via
// atomics.
type Cluster struct {
	Name      string
	Endpoints []string
	Balance   string

	next atomic.Uint32
}

// Pick selects one endpoint according to the cluster's balancing mode.
func (c *Cluster) Pick() string {
	if len(c.Endpoints) == 1 {
		return c.Endpoints[0]
	}
	switch c.Balance {
	case BalanceRandom:
		return c.Endpoints[rand.Intn(len(c.Endpoints))]
	default:
		n := c.next.Add(1) - 1
		return c.Endpoints[int(n)%len(c.Endpoints)]
	}
}
