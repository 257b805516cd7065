// Package routes holds the static routing table mapping path prefixes to
// backend clusters. The table is built once at startup and read-only during
// request handling.
package routes

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Route maps a path prefix to a cluster. RequiresAuth gates the route behind
// a valid principal; RequireRole additionally restricts it to one role and is
// plain configuration, not code.
type Route struct {
	Prefix       string
	Cluster      *Cluster
	RequiresAuth bool
	RequireRole  string
}

// Table matches request paths to routes, longest prefix first.
type Table struct {
	routes []Route // sorted by prefix length, descending
}

// New validates and assembles a table. Duplicate prefixes, unknown clusters,
// empty endpoint lists and unknown balancing modes are configuration errors
// rejected here, never at request time.
func New(clusters map[string]*Cluster, rts []Route) (*Table, error) {
	for name, c := range clusters {
		c.Name = name
		if len(c.Endpoints) == 0 {
			return nil, fmt.Errorf("routes: cluster %q has no endpoints", name)
		}
		switch c.Balance {
		case "", BalanceRoundRobin, BalanceRandom:
		default:
			return nil, fmt.Errorf("routes: cluster %q: unknown balance mode %q", name, c.Balance)
		}
	}
	seen := map[string]bool{}
	for i := range rts {
		r := &rts[i]
		if !strings.HasPrefix(r.Prefix, "/") {
			return nil, fmt.Errorf("routes: prefix %q must start with /", r.Prefix)
		}
		if seen[r.Prefix] {
			return nil, fmt.Errorf("routes: duplicate prefix %q", r.Prefix)
		}
		seen[r.Prefix] = true
		if r.Cluster == nil {
			return nil, fmt.Errorf("routes: prefix %q references no cluster", r.Prefix)
		}
	}
	sorted := make([]Route, len(rts))
	copy(sorted, rts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})
	return &Table{routes: sorted}, nil
}

// Match selects the route with the longest prefix of path. Prefixes match on
// segment boundaries, so /tasks covers /tasks and /tasks/42 but not /tasksX.
// The bool is false when nothing matches; the pipeline turns that into a 404.
func (t *Table) Match(path string) (Route, bool) {
	for _, r := range t.routes {
		if matchPrefix(path, r.Prefix) {
			return r, true
		}
	}
	return Route{}, false
}

func matchPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	if len(path) == len(prefix) || strings.HasSuffix(prefix, "/") {
		return true
	}
	return path[len(prefix)] == '/'
}

type fileConfig struct {
	Clusters map[string]struct {
		Balance   string   `yaml:"balance"`
		Endpoints []string `yaml:"endpoints"`
	} `yaml:"clusters"`
	Routes []struct {
		Prefix       string `yaml:"prefix"`
		Cluster      string `yaml:"cluster"`
		RequiresAuth bool   `yaml:"requires_auth"`
		RequireRole  string `yaml:"require_role"`
	} `yaml:"routes"`
}

// Load reads a YAML routing table.
func Load(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("routes: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse builds a table from YAML bytes.
func Parse(raw []byte) (*Table, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("routes: parse: %w", err)
	}
	clusters := map[string]*Cluster{}
	for name, c := range fc.Clusters {
		clusters[name] = &Cluster{Endpoints: c.Endpoints, Balance: c.Balance}
	}
	rts := make([]Route, 0, len(fc.Routes))
	for _, r := range fc.Routes {
		c, ok := clusters[r.Cluster]
		if !ok {
			return nil, fmt.Errorf("routes: prefix %q references unknown cluster %q", r.Prefix, r.Cluster)
		}
		rts = append(rts, Route{Prefix: r.Prefix, Cluster: c, RequiresAuth: r.RequiresAuth, RequireRole: r.RequireRole})
	}
	return New(clusters, rts)
}

// FromEnv builds the default table for local bring-up: task and analytics
// services resolved from env URLs, all prefixes protected.
func FromEnv() (*Table, error) {
	task := &Cluster{Endpoints: []string{envOr("TASK_SERVICE_URL", "http://localhost:5001")}}
	analytics := &Cluster{Endpoints: []string{envOr("ANALYTICS_SERVICE_URL", "http://localhost:5002")}}
	return New(
		map[string]*Cluster{"task-service": task, "analytics-service": analytics},
		[]Route{
			{Prefix: "/tasks", Cluster: task, RequiresAuth: true},
			{Prefix: "/projects", Cluster: task, RequiresAuth: true},
			{Prefix: "/analytics", Cluster: analytics, RequiresAuth: true},
		},
	)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
