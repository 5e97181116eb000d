package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/aryann/difflib"
	"gopkg.in/yaml.v3"

	"gfx.cafe/gfx/dbchain/lib/catalog"
)

// Entry is one connection block of an application database config.
type Entry struct {
	Adapter  string `yaml:"adapter" json:"adapter"`
	Database string `yaml:"database" json:"database"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Color    string `yaml:"color" json:"color"`
	Type     string `yaml:"type" json:"type"`
}

// Document is an ordered set of named entries.
type Document struct {
	Names   []string
	Entries map[string]Entry
}

func (T *Document) Get(name string) (Entry, bool) {
	entry, ok := T.Entries[name]
	return entry, ok
}

func (T *Document) add(name string, entry Entry) error {
	if _, ok := T.Entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEntry, name)
	}
	if T.Entries == nil {
		T.Entries = make(map[string]Entry)
	}
	T.Names = append(T.Names, name)
	T.Entries[name] = entry
	return nil
}

func (T Document) MarshalYAML() (any, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, name := range T.Names {
		var value yaml.Node
		if err := value.Encode(T.Entries[name]); err != nil {
			return nil, err
		}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name},
			&value,
		)
	}
	return root, nil
}

func (T Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(T.Entries)
}

var _ yaml.Marshaler = Document{}
var _ json.Marshaler = Document{}

var ErrDuplicateEntry = fmt.Errorf("duplicate config entry")

// FollowerName is the entry name of a follower with the given color.
func FollowerName(env, color string) string {
	return env + "_slave_database_" + strings.ToLower(color)
}

// Config maps a catalog to an application database config. The master is
// named env, each follower is named after its color. Nodes of unknown role are
// left out. Two followers sharing a color are an error.
func Config(c catalog.Catalog, env string) (Document, error) {
	var doc Document
	var err error
	c.Range(func(node catalog.Node) bool {
		var name string
		switch node.Role {
		case catalog.RoleMaster:
			name = env
		case catalog.RoleFollower:
			name = FollowerName(env, node.Color)
		default:
			return true
		}
		err = doc.add(name, Entry{
			Adapter:  node.Adapter,
			Database: node.Endpoint.Database,
			Username: node.Endpoint.Username,
			Password: node.Endpoint.Password,
			Host:     node.Endpoint.Host,
			Port:     node.Endpoint.Port,
			Color:    node.Color,
			Type:     string(node.Role),
		})
		return err == nil
	})
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

// YAML renders doc as a database.yml file.
func YAML(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func describe(c catalog.Catalog) []string {
	lines := make([]string, 0, c.Len())
	c.Range(func(node catalog.Node) bool {
		lines = append(lines, fmt.Sprintf("%s %s %s %s:%d/%s %s",
			node.Key,
			node.Role,
			node.Color,
			node.Endpoint.Host,
			node.Endpoint.Port,
			node.Endpoint.Database,
			node.Status,
		))
		return true
	})
	sort.Strings(lines)
	return lines
}

// Diff renders the difference between two catalogs one node per line. Lines
// only in before are prefixed with "-", lines only in after with "+".
func Diff(before, after catalog.Catalog) []string {
	records := difflib.Diff(describe(before), describe(after))
	lines := make([]string, 0, len(records))
	for _, record := range records {
		lines = append(lines, record.String())
	}
	return lines
}

// Changed reports whether Diff would contain additions or removals.
func Changed(before, after catalog.Catalog) bool {
	for _, record := range difflib.Diff(describe(before), describe(after)) {
		if record.Delta != difflib.Common {
			return true
		}
	}
	return false
}
