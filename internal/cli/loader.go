package cli

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is one object description in a put file. A put file is a
// YAML stream; each document names a class, optional id (one is
// generated when absent), properties, and ordered list entries.
//
//	class: Dog
//	id: dog-rex
//	props:
//	  Name: Rex
//	  Age: 4
//	lists:
//	  Puppies: [dog-fido, dog-bella]
type Document struct {
	Class string              `yaml:"class"`
	ID    string              `yaml:"id"`
	Props map[string]any      `yaml:"props"`
	Lists map[string][]string `yaml:"lists"`
}

// LoadDocuments parses a YAML stream of object documents.
func LoadDocuments(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open documents: %w", err)
	}
	defer f.Close()

	var docs []Document
	dec := yaml.NewDecoder(f)
	for i := 0; ; i++ {
		var doc Document
		if err := dec.Decode(&doc); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		if doc.Class == "" {
			return nil, fmt.Errorf("document %d: missing class", i)
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no documents in %s", path)
	}
	return docs, nil
}
