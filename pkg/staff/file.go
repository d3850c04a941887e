package staff

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Records is a staff import file. It accepts a list of records or a plain
// name to id mapping; JSON input parses as YAML.
//
//	- name: John Doe
//	  id: JD12345
//
//	John Doe: JD12345
type Records []Record

// UnmarshalYAML supports both the list and the mapping form.
func (rs *Records) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.MappingNode:
		out := make(Records, 0, len(value.Content)/2)
		for i := 0; i+1 < len(value.Content); i += 2 {
			k, v := value.Content[i], value.Content[i+1]
			if v.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: id for %q must be a string", v.Line, k.Value)
			}
			out = append(out, Record{Name: k.Value, ID: v.Value})
		}
		*rs = out
	case yaml.SequenceNode:
		var list []Record
		if err := value.Decode(&list); err != nil {
			return err
		}
		*rs = list
	default:
		return fmt.Errorf("line %d: want a list of records or a name: id mapping", value.Line)
	}
	return rs.validate()
}

func (rs Records) validate() error {
	seen := make(map[string]bool, len(rs))
	for i, r := range rs {
		if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.ID) == "" {
			return fmt.Errorf("record %d: name and id are required", i)
		}
		k := NormalizeName(r.Name)
		if seen[k] {
			return fmt.Errorf("record %d: duplicate name %q", i, r.Name)
		}
		seen[k] = true
	}
	return nil
}

// ReadRecords parses an import file from r.
func ReadRecords(r io.Reader) (Records, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("staff: read records: %w", err)
	}
	var rs Records
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("staff: parse records: %w", err)
	}
	return rs, nil
}

// LoadRecords parses the import file at path. A path of "-" reads stdin.
func LoadRecords(path string, stdin io.Reader) (Records, error) {
	if path == "-" {
		return ReadRecords(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("staff: %w", err)
	}
	defer f.Close()
	return ReadRecords(f)
}
