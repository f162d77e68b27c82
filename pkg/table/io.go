package table

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/lintang-b-s/accessx/pkg/matrix"
	"github.com/lintang-b-s/accessx/pkg/util"
)

// openMaybeBzip2 opens a csv file, transparently decompressing .bz2.
func openMaybeBzip2(filename string) (io.ReadCloser, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(filename, ".bz2") {
		return f, nil
	}

	bz, err := bzip2.NewReader(f, nil)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &bzip2File{Reader: bz, f: f}, nil
}

type bzip2File struct {
	*bzip2.Reader
	f *os.File
}

func (b *bzip2File) Close() error {
	if err := b.Reader.Close(); err != nil {
		b.f.Close()
		return err
	}
	return b.f.Close()
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	return idx
}

// ReadLocationsFromCSV loads an attribute table. idColumn names the id
// column; valueColumns selects the numeric columns to keep, or, when empty,
// every other column is parsed as numeric.
func ReadLocationsFromCSV(filename, idColumn string, valueColumns ...string) (*Locations, error) {
	rc, err := openMaybeBzip2(filename)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	header, err := r.Read()
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrDataIntegrity,
			"locations file %s: cannot read header", filename)
	}

	idx := headerIndex(header)
	idAt, ok := idx[idColumn]
	if !ok {
		return nil, util.WrapErrorf(nil, util.ErrSchema,
			"locations file %s: no id column %q in header %v", filename, idColumn, header)
	}

	if len(valueColumns) == 0 {
		for _, name := range header {
			name = strings.TrimSpace(name)
			if name != idColumn {
				valueColumns = append(valueColumns, name)
			}
		}
	}
	colAt := make([]int, len(valueColumns))
	for i, name := range valueColumns {
		at, ok := idx[name]
		if !ok {
			return nil, util.WrapErrorf(nil, util.ErrSchema,
				"locations file %s: no column %q in header %v", filename, name, header)
		}
		colAt[i] = at
	}

	var ids []string
	values := make(map[string][]float64, len(valueColumns))
	for _, name := range valueColumns {
		values[name] = nil
	}

	row := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, util.WrapErrorf(err, util.ErrDataIntegrity,
				"locations file %s: row %d", filename, row+1)
		}
		row++

		ids = append(ids, strings.TrimSpace(record[idAt]))
		for i, name := range valueColumns {
			val, err := util.StringToFloat64(strings.TrimSpace(record[colAt[i]]))
			if err != nil {
				return nil, util.WrapErrorf(err, util.ErrDataIntegrity,
					"locations file %s: row %d column %s is not numeric", filename, row, name)
			}
			values[name] = append(values[name], val)
		}
	}

	return NewLocations(ids, values)
}

// ReadEdgesFromCSV loads a long-form cost table with the given origin,
// destination and cost column names.
func ReadEdgesFromCSV(filename, originColumn, destColumn, costColumn string) ([]matrix.Edge, error) {
	rc, err := openMaybeBzip2(filename)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	header, err := r.Read()
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrDataIntegrity,
			"cost file %s: cannot read header", filename)
	}

	idx := headerIndex(header)
	originAt, ok := idx[originColumn]
	if !ok {
		return nil, util.WrapErrorf(nil, util.ErrSchema,
			"cost file %s: no origin column %q in header %v", filename, originColumn, header)
	}
	destAt, ok := idx[destColumn]
	if !ok {
		return nil, util.WrapErrorf(nil, util.ErrSchema,
			"cost file %s: no destination column %q in header %v", filename, destColumn, header)
	}
	costAt, ok := idx[costColumn]
	if !ok {
		return nil, util.WrapErrorf(nil, util.ErrSchema,
			"cost file %s: no cost column %q in header %v", filename, costColumn, header)
	}

	var edges []matrix.Edge
	row := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, util.WrapErrorf(err, util.ErrDataIntegrity,
				"cost file %s: row %d", filename, row+1)
		}
		row++

		cost, err := util.StringToFloat64(strings.TrimSpace(record[costAt]))
		if err != nil {
			return nil, util.WrapErrorf(err, util.ErrDataIntegrity,
				"cost file %s: row %d cost is not numeric", filename, row)
		}
		edges = append(edges, matrix.Edge{
			Origin: strings.TrimSpace(record[originAt]),
			Dest:   strings.TrimSpace(record[destAt]),
			Cost:   cost,
		})
	}
	return edges, nil
}

// WriteEdgesCSV writes a long-form cost table with the given column names,
// the shape ReadEdgesFromCSV consumes.
func WriteEdgesCSV(filename, originColumn, destColumn, costColumn string,
	edges []matrix.Edge) error {

	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{originColumn, destColumn, costColumn}); err != nil {
		return err
	}
	record := make([]string, 3)
	for _, e := range edges {
		record[0] = e.Origin
		record[1] = e.Dest
		record[2] = util.FormatFloat(e.Cost)
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// WriteScoresCSV writes an origin-keyed score table, one row per id, one
// column per score name.
func WriteScoresCSV(filename, idColumn string, ids []string, columns []string,
	scores map[string][]float64) error {

	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{idColumn}, columns...)
	if err := w.Write(header); err != nil {
		return err
	}

	record := make([]string, len(header))
	for i, id := range ids {
		record[0] = id
		for j, name := range columns {
			record[j+1] = util.FormatFloat(scores[name][i])
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
