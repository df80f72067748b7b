package loader

import (
	"fmt"

	"github.com/robinvdvleuten/cgt/tax"
	"gopkg.in/yaml.v3"
)

type yamlFile struct {
	Include      []string    `yaml:"include"`
	Transactions []yaml.Node `yaml:"transactions"`
}

func (l *Loader) parseYAML(filename string, data []byte) (*document, error) {
	var file yamlFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &ParseError{Pos: Position{Filename: filename, Line: 1}, Err: fmt.Errorf("malformed yaml: %w", err)}
	}

	doc := &document{
		includes:     file.Include,
		transactions: make([]*tax.Transaction, 0, len(file.Transactions)),
	}
	for i := range file.Transactions {
		node := &file.Transactions[i]
		pos := Position{Filename: filename, Line: node.Line, Column: node.Column}

		var r record
		if err := node.Decode(&r); err != nil {
			return nil, &ParseError{Pos: pos, Err: err}
		}
		txn, err := r.transaction(pos, l.Location)
		if err != nil {
			return nil, err
		}
		doc.transactions = append(doc.transactions, txn)
	}
	return doc, nil
}
