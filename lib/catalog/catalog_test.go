package catalog

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestCatalogOrder(t *testing.T) {
	c := Make(
		Node{Key: "app_B"},
		Node{Key: "app_A"},
		Node{Key: "app_C"},
	)
	c.Put(Node{Key: "app_B", Color: "BLUE"})

	if got, want := c.Keys(), []string{"app_B", "app_A", "app_C"}; !reflect.DeepEqual(got, want) {
		t.Errorf("keys = %v, want %v", got, want)
	}
	if node, _ := c.Get("app_B"); node.Color != "BLUE" {
		t.Errorf("replaced node was not stored")
	}

	c.Delete("app_A")
	c.Delete("app_missing")
	if got, want := c.Keys(), []string{"app_B", "app_C"}; !reflect.DeepEqual(got, want) {
		t.Errorf("keys after delete = %v, want %v", got, want)
	}
}

func TestCatalogClone(t *testing.T) {
	c := Make(Node{Key: "a"}, Node{Key: "b"})
	clone := c.Clone()
	clone.Put(Node{Key: "c"})
	clone.Delete("a")

	if c.Len() != 2 || !c.Has("a") || c.Has("c") {
		t.Errorf("clone mutated the original: %v", c.Keys())
	}
}

func TestZeroCatalog(t *testing.T) {
	var c Catalog
	if c.Len() != 0 || len(c.Nodes()) != 0 {
		t.Error("zero catalog should be empty")
	}
	if _, ok := Master(c); ok {
		t.Error("zero catalog has no master")
	}
}

type TopologyTestCase struct {
	Name      string
	Nodes     []Node
	Master    string
	Followers []string
	Violation bool
}

var topologyTestCases = []TopologyTestCase{
	{
		Name: "master and followers",
		Nodes: []Node{
			{Key: "f1", Role: RoleFollower},
			{Key: "m", Role: RoleMaster},
			{Key: "f2", Role: RoleFollower},
		},
		Master:    "m",
		Followers: []string{"f1", "f2"},
	},
	{
		Name: "no master",
		Nodes: []Node{
			{Key: "f1", Role: RoleFollower},
		},
		Followers: []string{"f1"},
		Violation: true,
	},
	{
		Name: "two masters",
		Nodes: []Node{
			{Key: "m1", Role: RoleMaster},
			{Key: "m2", Role: RoleMaster},
			{Key: "u", Role: RoleUnknown},
		},
		Violation: true,
	},
}

func TestTopology(t *testing.T) {
	for _, cas := range topologyTestCases {
		t.Run(cas.Name, func(t *testing.T) {
			c := Make(cas.Nodes...)

			master, ok := Master(c)
			if ok != (cas.Master != "") || master.Key != cas.Master {
				t.Errorf("master = %q (%v), want %q", master.Key, ok, cas.Master)
			}

			var followers []string
			for _, f := range Followers(c) {
				followers = append(followers, f.Key)
			}
			if !reflect.DeepEqual(followers, cas.Followers) {
				t.Errorf("followers = %v, want %v", followers, cas.Followers)
			}

			_, err := RequireMaster(c)
			var violation *TopologyInvariantViolation
			if errors.As(err, &violation) != cas.Violation {
				t.Errorf("RequireMaster error = %v, want violation %v", err, cas.Violation)
			}
		})
	}
}

func TestCacheHitRatio(t *testing.T) {
	m := Metrics{}
	if ratio, ok := m.CacheHitRatio(); ok || math.IsNaN(ratio) {
		t.Errorf("zero counters must be undefined, got %v %v", ratio, ok)
	}

	m = Metrics{BlocksHit: 3, BlocksRead: 1}
	if ratio, ok := m.CacheHitRatio(); !ok || ratio != 0.75 {
		t.Errorf("ratio = %v %v, want 0.75", ratio, ok)
	}
}

func TestColorOf(t *testing.T) {
	cases := map[string]string{
		"HEROKU_POSTGRESQL_AMBER": "AMBER",
		"primary":                 "primary",
		"db_":                     "",
	}
	for name, want := range cases {
		if got := ColorOf(name); got != want {
			t.Errorf("ColorOf(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestParseRole(t *testing.T) {
	if ParseRole("master") != RoleMaster || ParseRole("follower") != RoleFollower || ParseRole("primary") != RoleUnknown {
		t.Error("unexpected role parsing")
	}
}
