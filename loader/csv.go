package loader

import (
	"bytes"
	"fmt"

	"github.com/gocarina/gocsv"
	"github.com/robinvdvleuten/cgt/tax"
)

func (l *Loader) parseCSV(filename string, data []byte) ([]*tax.Transaction, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var records []*record
	if err := gocsv.Unmarshal(bytes.NewReader(data), &records); err != nil {
		return nil, &ParseError{Pos: Position{Filename: filename, Line: 1}, Err: fmt.Errorf("malformed csv: %w", err)}
	}

	txns := make([]*tax.Transaction, 0, len(records))
	for i, r := range records {
		// line 1 is the header
		pos := Position{Filename: filename, Line: i + 2}
		txn, err := r.transaction(pos, l.Location)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, nil
}
