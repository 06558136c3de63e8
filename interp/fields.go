// Field handling for the rawk interpreter: splitting $0 into fields
// and rebuilding it when fields, NF, or $0 are assigned.

package interp

import (
	"strconv"
	"strings"
)

// Set up for a new input line (but don't parse it into fields until
// a field or NF is actually needed).
func (p *Interp) setLine(line string, isTrueStr bool) {
	p.line = line
	p.lineIsTrueStr = isTrueStr
	p.haveFields = false
}

// Ensure that the current line is parsed into fields, splitting it
// if it hasn't been already. Splitting modes, in priority order:
// fixed-width columns (FIELDWIDTHS), content-based fields (FPAT),
// then the FS rules.
func (p *Interp) ensureFields() {
	if p.haveFields {
		return
	}
	p.haveFields = true

	switch {
	case len(p.fieldWidths) > 0:
		p.fields = p.splitFieldWidths(p.line)
	case p.fieldPat != "":
		p.fields = p.splitFieldPat(p.line)
	case p.fieldSep == " ":
		// FS space (default) means split fields on any whitespace
		p.fields = strings.Fields(p.line)
	case p.line == "":
		p.fields = nil
	case len(p.fieldSep) == 1:
		// 1-char FS is handled as a plain split (not a regex)
		p.fields = strings.Split(p.line, p.fieldSep)
	default:
		// Split on FS as a regex
		p.fields = p.splitOnFieldSepRegex(p.fields[:0], p.line)
	}

	// In paragraph mode (RS=="") newlines within the record separate
	// fields in addition to FS, whatever form FS takes (fixed-width
	// and FPAT splitting are whole-record modes and are left alone)
	if p.recordSep == "" && len(p.fieldWidths) == 0 && p.fieldPat == "" {
		fields := make([]string, 0, len(p.fields))
		for _, field := range p.fields {
			lines := strings.Split(field, "\n")
			for _, line := range lines {
				trimmed := strings.TrimSuffix(line, "\r")
				fields = append(fields, trimmed)
			}
		}
		p.fields = fields
	}

	p.fieldsIsTrueStr = p.fieldsIsTrueStr[:0] // avoid allocation most of the time
	for range p.fields {
		p.fieldsIsTrueStr = append(p.fieldsIsTrueStr, false)
	}
	p.numFields = len(p.fields)
}

// Splits on FS as a regex, appending each field to fields and
// returning the new slice. Empty matches are skipped so a pattern
// like "x*" doesn't split between every character.
func (p *Interp) splitOnFieldSepRegex(fields []string, line string) []string {
	re := p.mustCompile(p.fieldSep)
	indices := re.FindAllStringIndex(line, -1)
	prevIndex := 0
	for _, match := range indices {
		start, end := match[0], match[1]
		if start == end {
			continue
		}
		fields = append(fields, line[prevIndex:start])
		prevIndex = end
	}
	fields = append(fields, line[prevIndex:])
	return fields
}

// splitFieldWidths splits line into the fixed-width columns given by
// FIELDWIDTHS; a trailing "*" width takes the remainder of the line.
func (p *Interp) splitFieldWidths(line string) []string {
	var fields []string
	pos := 0
	for _, width := range p.fieldWidths {
		if pos >= len(line) {
			break
		}
		if width < 0 {
			// "*" entry: rest of the line is the final field
			fields = append(fields, line[pos:])
			break
		}
		end := pos + width
		if end > len(line) {
			end = len(line)
		}
		fields = append(fields, line[pos:end])
		pos = end
	}
	return fields
}

// splitFieldPat makes fields from the non-overlapping matches of the
// FPAT regex, rather than from separators.
func (p *Interp) splitFieldPat(line string) []string {
	re := p.mustCompile(p.fieldPat)
	matches := re.FindAllStringIndex(line, -1)
	var fields []string
	for _, match := range matches {
		if match[0] == match[1] {
			continue
		}
		fields = append(fields, line[match[0]:match[1]])
	}
	return fields
}

// parseFieldWidths parses a FIELDWIDTHS value: blank-separated column
// widths, optionally ending with "*" for "rest of line". An empty
// value disables fixed-width splitting.
func parseFieldWidths(s string) ([]int, error) {
	parts := strings.Fields(s)
	if len(parts) == 0 {
		return nil, nil
	}
	widths := make([]int, len(parts))
	for i, part := range parts {
		if part == "*" {
			if i != len(parts)-1 {
				return nil, newError(`invalid FIELDWIDTHS value %q: "*" must be last`, s)
			}
			widths[i] = -1
			continue
		}
		width, err := strconv.Atoi(part)
		if err != nil || width <= 0 {
			return nil, newError("invalid FIELDWIDTHS value %q", s)
		}
		widths[i] = width
	}
	return widths, nil
}

// getField returns the value of field index ($0 is the whole line).
// Reading a field past NF returns "" without extending the fields.
func (p *Interp) getField(index int) value {
	if index < 0 {
		panic(newError("field index negative: %d", index))
	}
	if index == 0 {
		if p.lineIsTrueStr {
			return str(p.line)
		}
		return numStr(p.line)
	}
	p.ensureFields()
	if index > len(p.fields) {
		return str("")
	}
	if p.fieldsIsTrueStr[index-1] {
		return str(p.fields[index-1])
	}
	return numStr(p.fields[index-1])
}

// setField sets a field, equivalent to "$index = value". Assigning
// past NF materializes the intermediate fields as empty strings, and
// any field assignment rebuilds $0 with OFS.
func (p *Interp) setField(index int, v value) {
	if index < 0 {
		panic(newError("field index negative: %d", index))
	}
	if index == 0 {
		p.setLine(p.toString(v), v.isTrueStr())
		return
	}
	p.ensureFields()
	for i := len(p.fields); i < index; i++ {
		p.fields = append(p.fields, "")
		p.fieldsIsTrueStr = append(p.fieldsIsTrueStr, false)
	}
	p.fields[index-1] = p.toString(v)
	p.fieldsIsTrueStr[index-1] = v.isTrueStr()
	p.numFields = len(p.fields)
	p.rebuildLine()
}

// setNumFields assigns NF, truncating or extending the field vector
// and rebuilding $0.
func (p *Interp) setNumFields(numFields int) {
	if numFields < 0 {
		panic(newError("NF set to negative value: %d", numFields))
	}
	p.ensureFields()
	p.numFields = numFields
	if numFields < len(p.fields) {
		p.fields = p.fields[:numFields]
		p.fieldsIsTrueStr = p.fieldsIsTrueStr[:numFields]
	}
	for i := len(p.fields); i < numFields; i++ {
		p.fields = append(p.fields, "")
		p.fieldsIsTrueStr = append(p.fieldsIsTrueStr, false)
	}
	p.rebuildLine()
}

func (p *Interp) rebuildLine() {
	p.line = strings.Join(p.fields, p.outputFieldSep)
	p.lineIsTrueStr = true
}
