package fm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// parseHeader parses a "p cnf <vars> <clauses>" line.
func parseHeader(line string) (nbVars, nbClauses int, err error) {
	fields := strings.Fields(line)
	if len(fields) < 4 || fields[1] != "cnf" {
		return 0, 0, fmt.Errorf("invalid syntax %q in header", line)
	}
	nbVars, err = strconv.Atoi(fields[2])
	if err != nil || nbVars < 0 {
		return 0, 0, fmt.Errorf("nbvars not a positive int: %q", fields[2])
	}
	nbClauses, err = strconv.Atoi(fields[3])
	if err != nil || nbClauses < 0 {
		return 0, 0, fmt.Errorf("nbClauses not a positive int: %q", fields[3])
	}
	return nbVars, nbClauses, nil
}

// parseFeatureComment parses a "c <n>[$] <name>" line.
// ok is false if the comment does not name a feature.
func parseFeatureComment(line string) (idx int, name string, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 3 || fields[0] != "c" {
		return 0, "", false
	}
	idx, err := strconv.Atoi(strings.TrimRight(fields[1], "$"))
	if err != nil || idx <= 0 {
		return 0, "", false
	}
	return idx, strings.Join(fields[2:], " "), true
}

// ParseDIMACS parses a DIMACS CNF feature model.
// Comment lines of the form "c <n> <name>" name feature n; features must be
// numbered 1, 2, ... in that order. If no feature is named, every variable
// of the problem is a feature named after its index.
func ParseDIMACS(r io.Reader) (*Model, error) {
	var (
		features  []string
		clauses   [][]int
		current   []int
		nbVars    = -1
		nbClauses int
		lineNb    int
	)
	br := bufio.NewReader(r)
loop:
	for {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, &ParseError{Line: lineNb, Msg: "could not read line", Err: err}
		}
		if line == "" && err == io.EOF {
			break
		}
		lineNb++
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
		case trimmed[0] == 'c':
			if idx, name, ok := parseFeatureComment(trimmed); ok {
				if idx != len(features)+1 {
					return nil, parseErrorf(lineNb, "incorrect dimacs file, missing feature number %d", len(features)+1)
				}
				features = append(features, name)
			}
		case trimmed[0] == 'p':
			if nbVars >= 0 {
				return nil, parseErrorf(lineNb, "duplicate header")
			}
			nbVars, nbClauses, err = parseHeader(trimmed)
			if err != nil {
				return nil, &ParseError{Line: lineNb, Msg: "cannot parse CNF header", Err: err}
			}
			clauses = make([][]int, 0, nbClauses)
		case trimmed[0] == '%': // SATLIB end marker
			break loop
		default:
			if nbVars < 0 {
				return nil, parseErrorf(lineNb, "clause found before header")
			}
			for _, field := range strings.Fields(trimmed) {
				val, err := strconv.Atoi(field)
				if err != nil {
					return nil, parseErrorf(lineNb, "cannot read int: %q is not a literal", field)
				}
				if val == 0 {
					clauses = append(clauses, current)
					current = nil
					continue
				}
				if val > nbVars || -val > nbVars {
					return nil, parseErrorf(lineNb, "invalid literal %d for problem with %d vars only", val, nbVars)
				}
				current = append(current, val)
			}
		}
		if err == io.EOF {
			break
		}
	}
	if nbVars < 0 {
		return nil, parseErrorf(0, "no CNF header found")
	}
	if len(current) != 0 {
		return nil, parseErrorf(lineNb, "unfinished clause while EOF found")
	}
	if len(features) > nbVars {
		return nil, parseErrorf(0, "%d features named but only %d vars declared", len(features), nbVars)
	}
	if len(features) == 0 {
		features = make([]string, nbVars)
		for i := range features {
			features[i] = strconv.Itoa(i + 1)
		}
	}
	m := New("", features, clauses)
	if m.NbVars < nbVars {
		m.NbVars = nbVars
	}
	return m, nil
}
