package table

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/extrame/ole2"
)

// BIFF8 record ids.
const (
	biffFormula    = 0x0006
	biffEOF        = 0x000A
	biffBoundSheet = 0x0085
	biffMulRK      = 0x00BD
	biffMulBlank   = 0x00BE
	biffLabelSST   = 0x00FD
	biffBlank      = 0x0201
	biffNumber     = 0x0203
	biffLabel      = 0x0204
	biffRK         = 0x027E
)

type cellRef struct{ row, col int }

// biffSheet is read straight from the first worksheet's records. The xls
// package drops the ×100 flag of integer RK values and renders RK cells with
// a user-defined number format as timestamps, so RK numbers are taken from
// here. lastCol lists only rows that hold cells.
type biffSheet struct {
	numbers map[cellRef]float64
	lastCol map[int]int
}

func (s *biffSheet) extend(row, col int) {
	if last, ok := s.lastCol[row]; !ok || col > last {
		s.lastCol[row] = col
	}
}

// workbookStream returns the Workbook stream of an OLE2 compound file.
func workbookStream(data []byte) ([]byte, error) {
	ole, err := ole2.Open(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	dir, err := ole.ListDir()
	if err != nil {
		return nil, err
	}

	var book, root *ole2.File
	for _, f := range dir {
		switch f.Name() {
		case "Workbook", "Book":
			book = f
		case "Root Entry":
			root = f
		}
	}
	if book == nil || root == nil {
		return nil, errors.New("no Workbook stream")
	}
	return io.ReadAll(ole.OpenFile(book, root))
}

func biffRecord(stream []byte, pos int) (id uint16, body []byte, next int, ok bool) {
	if pos < 0 || pos+4 > len(stream) {
		return 0, nil, 0, false
	}
	id = binary.LittleEndian.Uint16(stream[pos:])
	end := pos + 4 + int(binary.LittleEndian.Uint16(stream[pos+2:]))
	if end > len(stream) {
		return 0, nil, 0, false
	}
	return id, stream[pos+4 : end], end, true
}

// firstSheetOffset returns the stream offset of the first BOUNDSHEET's BOF.
func firstSheetOffset(stream []byte) (int, bool) {
	for pos := 0; ; {
		id, body, next, ok := biffRecord(stream, pos)
		if !ok || id == biffEOF {
			return 0, false
		}
		if id == biffBoundSheet && len(body) >= 4 {
			return int(binary.LittleEndian.Uint32(body)), true
		}
		pos = next
	}
}

func scanFirstSheet(stream []byte) (*biffSheet, error) {
	off, ok := firstSheetOffset(stream)
	if !ok {
		return nil, errors.New("workbook has no sheets")
	}

	s := &biffSheet{
		numbers: make(map[cellRef]float64),
		lastCol: make(map[int]int),
	}
	for pos := off; ; {
		id, body, next, ok := biffRecord(stream, pos)
		if !ok || id == biffEOF {
			break
		}
		pos = next
		if len(body) < 6 {
			continue
		}

		row := int(binary.LittleEndian.Uint16(body))
		col := int(binary.LittleEndian.Uint16(body[2:]))
		switch id {
		case biffRK:
			if len(body) >= 10 {
				s.numbers[cellRef{row, col}] = rkValue(binary.LittleEndian.Uint32(body[6:]))
				s.extend(row, col)
			}
		case biffMulRK:
			n := (len(body) - 6) / 6
			for k := 0; k < n; k++ {
				rk := binary.LittleEndian.Uint32(body[4+6*k+2:])
				s.numbers[cellRef{row, col + k}] = rkValue(rk)
			}
			if n > 0 {
				s.extend(row, col+n-1)
			}
		case biffMulBlank:
			s.extend(row, int(binary.LittleEndian.Uint16(body[len(body)-2:])))
		case biffLabelSST, biffLabel, biffNumber, biffBlank, biffFormula:
			s.extend(row, col)
		}
	}
	return s, nil
}

// rkValue decodes an RK number: bit 0 scales by 1/100, bit 1 selects a
// signed 30-bit integer over the high 30 bits of an IEEE double.
func rkValue(rk uint32) float64 {
	var v float64
	if rk&0x2 != 0 {
		v = float64(int32(rk) >> 2)
	} else {
		v = math.Float64frombits(uint64(rk&^0x3) << 32)
	}
	if rk&0x1 != 0 {
		v /= 100
	}
	return v
}
