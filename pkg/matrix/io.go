package matrix

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/lintang-b-s/accessx/pkg/util"
)

/*
on-disk format, bzip2 compressed text:

	line 1: nOrigins nDests nnz
	line 2: origin ids, space separated, index order
	line 3: destination ids, space separated, index order
	line 4: forward row pointers (nOrigins+1 ints)
	line 5: forward column indexes (nnz ints)
	line 6: forward costs (nnz floats)

ids therefore must not contain whitespace. rows are written already sorted,
the reader only rebuilds the reverse side and the id maps.
*/

func (cm *CostMatrix) WriteToFile(filename string) error {
	for _, id := range cm.origins {
		if strings.ContainsAny(id, " \t\n") {
			return util.WrapErrorf(nil, util.ErrDataIntegrity,
				"origin id %q contains whitespace, not representable in matrix file", id)
		}
	}
	for _, id := range cm.dests {
		if strings.ContainsAny(id, " \t\n") {
			return util.WrapErrorf(nil, util.ErrDataIntegrity,
				"destination id %q contains whitespace, not representable in matrix file", id)
		}
	}

	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	bz, err := bzip2.NewWriter(f, &bzip2.WriterConfig{})
	if err != nil {
		return err
	}
	defer bz.Close()

	w := bufio.NewWriter(bz)

	fmt.Fprintf(w, "%d %d %d\n", len(cm.origins), len(cm.dests), len(cm.fCols))
	fmt.Fprintf(w, "%s\n", strings.Join(cm.origins, " "))
	fmt.Fprintf(w, "%s\n", strings.Join(cm.dests, " "))

	for i, ptr := range cm.fRowPtr {
		if i > 0 {
			fmt.Fprintf(w, " ")
		}
		fmt.Fprintf(w, "%d", ptr)
	}
	fmt.Fprintf(w, "\n")

	for i, col := range cm.fCols {
		if i > 0 {
			fmt.Fprintf(w, " ")
		}
		fmt.Fprintf(w, "%d", col)
	}
	fmt.Fprintf(w, "\n")

	for i, cost := range cm.fCosts {
		if i > 0 {
			fmt.Fprintf(w, " ")
		}
		fmt.Fprintf(w, "%v", cost)
	}
	fmt.Fprintf(w, "\n")

	return w.Flush()
}

func ReadCostMatrixFromFile(filename string) (*CostMatrix, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bz, err := bzip2.NewReader(f, nil)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(bz)

	header, err := readFields(br, filename)
	if err != nil {
		return nil, err
	}
	if len(header) != 3 {
		return nil, util.WrapErrorf(nil, util.ErrDataIntegrity,
			"matrix file %s: header wants 3 fields, got %d", filename, len(header))
	}
	m, err := parseCount(header[0], filename)
	if err != nil {
		return nil, err
	}
	n, err := parseCount(header[1], filename)
	if err != nil {
		return nil, err
	}
	nnz, err := parseCount(header[2], filename)
	if err != nil {
		return nil, err
	}

	cm := &CostMatrix{
		originIdx: make(map[string]int32, m),
		destIdx:   make(map[string]int32, n),
	}

	cm.origins, err = readIDLine(br, m, filename)
	if err != nil {
		return nil, err
	}
	for i, id := range cm.origins {
		cm.originIdx[id] = int32(i)
	}

	cm.dests, err = readIDLine(br, n, filename)
	if err != nil {
		return nil, err
	}
	for i, id := range cm.dests {
		cm.destIdx[id] = int32(i)
	}

	cm.fRowPtr, err = readIntLine(br, m+1, filename)
	if err != nil {
		return nil, err
	}
	cm.fCols, err = readIntLine(br, nnz, filename)
	if err != nil {
		return nil, err
	}
	cm.fCosts, err = readFloatLine(br, nnz, filename)
	if err != nil {
		return nil, err
	}

	cm.buildReverse()
	return cm, nil
}

func readFields(br *bufio.Reader, filename string) ([]string, error) {
	line, err := util.ReadLine(br)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrDataIntegrity,
			"matrix file %s: truncated", filename)
	}
	return strings.Fields(line), nil
}

func parseCount(token, filename string) (int, error) {
	val, err := strconv.Atoi(token)
	if err != nil || val < 0 {
		return 0, util.WrapErrorf(err, util.ErrDataIntegrity,
			"matrix file %s: bad count %q", filename, token)
	}
	return val, nil
}

func readIDLine(br *bufio.Reader, want int, filename string) ([]string, error) {
	tokens, err := readFields(br, filename)
	if err != nil {
		return nil, err
	}
	if len(tokens) != want {
		return nil, util.WrapErrorf(nil, util.ErrDataIntegrity,
			"matrix file %s: wants %d ids, got %d", filename, want, len(tokens))
	}
	return tokens, nil
}

func readIntLine(br *bufio.Reader, want int, filename string) ([]int32, error) {
	tokens, err := readFields(br, filename)
	if err != nil {
		return nil, err
	}
	if len(tokens) != want {
		return nil, util.WrapErrorf(nil, util.ErrDataIntegrity,
			"matrix file %s: wants %d ints, got %d", filename, want, len(tokens))
	}

	vals := make([]int32, want)
	for i, token := range tokens {
		val, err := strconv.Atoi(token)
		if err != nil {
			return nil, util.WrapErrorf(err, util.ErrDataIntegrity,
				"matrix file %s: bad int %q", filename, token)
		}
		vals[i] = int32(val)
	}
	return vals, nil
}

func readFloatLine(br *bufio.Reader, want int, filename string) ([]float64, error) {
	tokens, err := readFields(br, filename)
	if err != nil {
		return nil, err
	}
	if len(tokens) != want {
		return nil, util.WrapErrorf(nil, util.ErrDataIntegrity,
			"matrix file %s: wants %d floats, got %d", filename, want, len(tokens))
	}

	vals := make([]float64, want)
	for i, token := range tokens {
		val, err := util.StringToFloat64(token)
		if err != nil {
			return nil, util.WrapErrorf(err, util.ErrDataIntegrity,
				"matrix file %s: bad float %q", filename, token)
		}
		vals[i] = val
	}
	return vals, nil
}
